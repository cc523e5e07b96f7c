package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasksphere/sphere-client/internal/dto"
	"github.com/tasksphere/sphere-client/internal/models"
	"github.com/tasksphere/sphere-client/internal/reminders"
	"github.com/tasksphere/sphere-client/internal/replica"
	"github.com/tasksphere/sphere-client/internal/utils"
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sphere.yaml"
	}
	return filepath.Join(home, ".sphere", "config.yaml")
}

func newLoginCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Log in and store the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.session.Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
}

func newRegisterCommand(configPath *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "register <email> <password>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.session.Register(cmd.Context(), args[0], args[1], name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "welcome, %s\n", user.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func newLogoutCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.Hydrate(cmd.Context()); err == nil {
				a.session.Logout("manual")
			} else {
				// Tokens were unusable anyway; just clear them.
				a.store.ClearTokens()
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newListsCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Manage task lists",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "Show your task lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			lists, err := a.api.ListTaskLists(cmd.Context())
			if err != nil {
				return err
			}
			for _, l := range lists {
				line := fmt.Sprintf("%d\t%s", l.ID, l.Name)
				if l.TaskCount != nil {
					line += fmt.Sprintf("\t%d tasks", *l.TaskCount)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a task list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			list, err := a.api.CreateTaskList(cmd.Context(), dto.CreateListRequest{Name: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created list %d (invite code %s)\n", list.ID, list.InviteCode)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "join <invite-code>",
		Short: "Join a task list by invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if err := utils.ValidateInviteCode(args[0]); err != nil {
				return err
			}

			list, err := a.api.JoinTaskList(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "joined %s (%d)\n", list.Name, list.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use <list-id>",
		Short: "Remember a list as the default for other commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid list id %q", args[0])
			}
			return a.rememberList(id)
		},
	})

	return cmd
}

func newTasksCommand(configPath *string) *cobra.Command {
	var listFlag uint64

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Work with the selected list's tasks",
	}
	cmd.PersistentFlags().Uint64Var(&listFlag, "list", 0, "task list id (defaults to the remembered list)")

	var nameFilter, projectFilter, assigneeFilter, priorityFilter string
	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List tasks, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			listID, err := a.selectedList(listFlag)
			if err != nil {
				return err
			}
			if err := a.replica.Load(cmd.Context(), listID); err != nil {
				return err
			}
			if user := a.session.User(); user != nil {
				if err := a.queue.Load(cmd.Context(), user.ID, listID); err != nil {
					return err
				}
			}

			tasks := a.replica.Filter(replica.FilterOptions{
				Name:     nameFilter,
				Project:  projectFilter,
				Assignee: assigneeFilter,
				Priority: models.Priority(priorityFilter),
			})
			for _, t := range tasks {
				fmt.Fprintln(cmd.OutOrStdout(), formatTask(t))
			}
			return nil
		},
	}
	lsCmd.Flags().StringVar(&nameFilter, "name", "", "name substring filter")
	lsCmd.Flags().StringVar(&projectFilter, "project", "", "project filter")
	lsCmd.Flags().StringVar(&assigneeFilter, "assignee", "", "assignee filter")
	lsCmd.Flags().StringVar(&priorityFilter, "priority", "", "priority filter (low|medium|high|urgent)")
	cmd.AddCommand(lsCmd)

	var priority, due, description string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			listID, err := a.selectedList(listFlag)
			if err != nil {
				return err
			}
			if err := a.replica.Load(cmd.Context(), listID); err != nil {
				return err
			}

			req := dto.CreateTaskRequest{Name: args[0], Description: description}
			if priority != "" {
				p := models.Priority(priority)
				if !p.Valid() {
					return fmt.Errorf("invalid priority %q", priority)
				}
				req.Priority = p
			}
			if due != "" {
				t, err := time.Parse(time.RFC3339, due)
				if err != nil {
					return fmt.Errorf("invalid due date %q: use RFC3339", due)
				}
				req.DueDate = &t
			}

			task, err := a.replica.CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created task %d\n", task.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&priority, "priority", "", "low|medium|high|urgent")
	addCmd.Flags().StringVar(&due, "due", "", "due date, RFC3339")
	addCmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "done <task-id>",
		Short: "Toggle a task's done status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			listID, err := a.selectedList(listFlag)
			if err != nil {
				return err
			}
			if err := a.replica.Load(cmd.Context(), listID); err != nil {
				return err
			}
			taskID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			task, err := a.replica.ToggleStatus(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			state := "open"
			if task.Status {
				state = "done"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %d is now %s\n", task.ID, state)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			taskID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return a.api.DeleteTask(cmd.Context(), taskID)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "suggest <text>",
		Short: "Draft tasks from free-form text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			drafts, err := a.drafter.Draft(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(drafts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tasks found in the text")
				return nil
			}
			for _, d := range drafts {
				line := d.Name
				if d.DueDate != nil {
					line += fmt.Sprintf("\t(due %s)", d.DueDate.Format("2006-01-02 15:04"))
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	})

	return cmd
}

func newQueueCommand(configPath *string) *cobra.Command {
	var listFlag uint64

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage your personal work queue",
	}
	cmd.PersistentFlags().Uint64Var(&listFlag, "list", 0, "task list id (defaults to the remembered list)")

	// loadEngine wires and loads the replica + queue for the selected
	// list, shared by every subcommand.
	loadEngine := func(cmd *cobra.Command) (*app, error) {
		a, err := newApp(*configPath)
		if err != nil {
			return nil, err
		}
		if err := a.requireSession(cmd.Context()); err != nil {
			a.Close()
			return nil, err
		}
		listID, err := a.selectedList(listFlag)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := a.replica.Load(cmd.Context(), listID); err != nil {
			a.Close()
			return nil, err
		}
		if err := a.queue.Load(cmd.Context(), a.session.User().ID, listID); err != nil {
			a.Close()
			return nil, err
		}
		return a, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the queue in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, t := range a.queue.Tasks() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d.\t%s\t(task %d)\n", *t.QueuePosition, t.Name, t.ID)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <task-id>",
		Short: "Append a task to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			taskID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			if err := a.queue.Add(cmd.Context(), taskID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued at position %d\n", a.queue.Position(taskID))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <task-id>",
		Short: "Remove a task from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			taskID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return a.queue.Remove(cmd.Context(), taskID)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "move <task-id> <position>",
		Short: "Move a task to a 1-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			taskID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[1])
			}
			return a.queue.Move(cmd.Context(), taskID, position)
		},
	})

	return cmd
}

func newRemindCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Manage task reminders",
	}

	var offsets []string
	var due string
	addCmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Schedule reminders against a task's due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			taskID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			dueDate, err := time.Parse(time.RFC3339, due)
			if err != nil {
				return fmt.Errorf("invalid --due %q: use RFC3339", due)
			}

			parsed := make([]reminders.Offset, 0, len(offsets))
			for _, raw := range offsets {
				o, err := parseOffset(raw)
				if err != nil {
					return err
				}
				parsed = append(parsed, o)
			}

			created, err := a.reminders.SchedulePredefined(cmd.Context(), taskID, dueDate, parsed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled %d reminders\n", len(created))
			return nil
		},
	}
	addCmd.Flags().StringSliceVar(&offsets, "before", []string{"1d"}, "offsets before the due date, e.g. 15m,2h,1d,1w")
	addCmd.Flags().StringVar(&due, "due", "", "the task's due date, RFC3339")
	addCmd.MarkFlagRequired("due")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "missed",
		Short: "Show reminders that fired while you were away",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}

			missed, err := a.reminders.Missed(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range missed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t(due %s)\n",
					m.SentAt.Format("2006-01-02 15:04"), m.TaskName, m.DueDate.Format("2006-01-02 15:04"))
			}
			return nil
		},
	})

	return cmd
}

// parseOffset turns "15m", "2h", "1d" or "1w" into an Offset.
func parseOffset(raw string) (reminders.Offset, error) {
	if len(raw) < 2 {
		return reminders.Offset{}, fmt.Errorf("invalid offset %q", raw)
	}
	value, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || value < 1 {
		return reminders.Offset{}, fmt.Errorf("invalid offset %q", raw)
	}
	var unit models.TimeUnit
	switch raw[len(raw)-1] {
	case 'm':
		unit = models.UnitMinutes
	case 'h':
		unit = models.UnitHours
	case 'd':
		unit = models.UnitDays
	case 'w':
		unit = models.UnitWeeks
	default:
		return reminders.Offset{}, fmt.Errorf("invalid offset unit in %q", raw)
	}
	return reminders.Offset{Value: value, Unit: unit}, nil
}

func newNotifyCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Read and manage notifications",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "Show notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.center.Load(cmd.Context()); err != nil {
				return err
			}

			for _, n := range a.center.Notifications() {
				marker := " "
				if !n.Read {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\t%s\t%s\n", marker, n.ID, n.Title, n.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", a.center.Unread())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.center.Load(cmd.Context()); err != nil {
				return err
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid notification id %q", args[0])
			}
			return a.center.MarkRead(cmd.Context(), id)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.center.Load(cmd.Context()); err != nil {
				return err
			}
			return a.center.MarkAllRead(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			return a.center.ClearAll(cmd.Context())
		},
	})

	return cmd
}

func formatTask(t models.Task) string {
	marker := "[ ]"
	if t.Status {
		marker = "[x]"
	}
	line := fmt.Sprintf("%s %d\t%s\t%s", marker, t.ID, t.Name, t.Priority)
	if t.QueuePosition != nil {
		line += fmt.Sprintf("\t(queue #%d)", *t.QueuePosition)
	}
	if t.DueDate != nil {
		line += fmt.Sprintf("\t(due %s)", t.DueDate.Format("2006-01-02"))
	}
	return line
}
