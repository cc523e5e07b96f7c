package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tasksphere/sphere-client/internal/models"
)

// newWatchCommand streams the selected list live: task events and
// notifications print as they arrive until interrupted.
func newWatchCommand(configPath *string) *cobra.Command {
	var listFlag uint64

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the selected list and your notifications live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.requireSession(ctx); err != nil {
				return err
			}
			listID, err := a.selectedList(listFlag)
			if err != nil {
				return err
			}
			if err := a.connect(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			a.rt.OnTaskCreated(func(t models.Task) {
				fmt.Fprintf(out, "+ task %d created: %s\n", t.ID, t.Name)
			})
			a.rt.OnTaskUpdated(func(t models.Task) {
				fmt.Fprintf(out, "~ task %d updated: %s\n", t.ID, t.Name)
			})
			a.rt.OnTaskDeleted(func(taskID uint64) {
				fmt.Fprintf(out, "- task %d deleted\n", taskID)
			})

			a.replica.Attach()
			a.center.Attach()
			// Terminal watch has no focus, so every notification also
			// reaches the desktop.
			a.center.SetFocused(false)
			a.center.OnChange(func() {
				fmt.Fprintf(out, "! %d unread notifications\n", a.center.Unread())
			})

			if err := a.center.Load(ctx); err != nil {
				return err
			}
			if err := a.replica.Select(ctx, listID); err != nil {
				return err
			}
			fmt.Fprintf(out, "watching list %d (%d tasks); ctrl-c to stop\n",
				listID, len(a.replica.Tasks()))

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			select {
			case <-stop:
			case <-ctx.Done():
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&listFlag, "list", 0, "task list id (defaults to the remembered list)")
	return cmd
}
