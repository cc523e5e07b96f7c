package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "spherecli",
		Short:         "Terminal client for Task Sphere",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the config file")

	root.AddCommand(
		newLoginCommand(&configPath),
		newRegisterCommand(&configPath),
		newLogoutCommand(&configPath),
		newListsCommand(&configPath),
		newTasksCommand(&configPath),
		newQueueCommand(&configPath),
		newRemindCommand(&configPath),
		newNotifyCommand(&configPath),
		newWatchCommand(&configPath),
	)
	return root
}
