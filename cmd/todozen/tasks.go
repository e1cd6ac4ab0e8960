package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"todozen/internal/backup"
	"todozen/internal/httpapi"
	"todozen/internal/model"
	"todozen/internal/service"
)

func addCmd() *cobra.Command {
	var due, category, repeat string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Long: `Add a task. --due accepts "2006-01-02 15:04", "2006-01-02", "15:04",
RFC3339 or a relative offset like "+90m". --repeat accepts none, daily,
weekly, monthly, every:N or days:mon,wed,fri.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dueAt, err := service.ParseDue(due, time.Now())
			if err != nil {
				return err
			}
			rec, extra, err := service.ParseRecurrence(repeat)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				task, err := a.tasks.CreateTask(ctx, service.TaskInput{
					Owner:      cfg.Owner,
					Title:      strings.Join(args, " "),
					Category:   category,
					Due:        dueAt,
					Recurrence: rec,
					Extra:      extra,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(httpapi.ToTaskResponse(task))
				}
				fmt.Printf("Added %s %q due %s\n", service.ShortID(task.ID), task.Title, formatTime(task.Due))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&due, "due", "d", "", "due date and time")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category (default General)")
	cmd.Flags().StringVarP(&repeat, "repeat", "r", "", "recurrence rule")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func listCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by due time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				tasks, err := a.tasks.ListTasks(ctx, cfg.Owner, all)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					out := make([]httpapi.TaskResponse, 0, len(tasks))
					for _, t := range tasks {
						out = append(out, httpapi.ToTaskResponse(t))
					}
					return printJSON(out)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Category", "Due", "Repeat", "Status"})
				now := time.Now()
				for _, t := range tasks {
					tw.AppendRow(table.Row{service.ShortID(t.ID), t.Title, t.Category, formatTime(t.Due),
						model.DescribeRecurrence(t.Recurrence, t.Extra), status(t, now)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed tasks")
	return cmd
}

func status(t model.Task, now time.Time) string {
	switch {
	case t.Done:
		return "done"
	case t.HasDue() && t.Due.Before(now):
		return "overdue"
	case t.Notified:
		return "notified"
	default:
		return "open"
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				task, err := resolveTask(ctx, a, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(httpapi.ToTaskResponse(task))
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRows([]table.Row{
					{"ID", task.ID},
					{"Title", task.Title},
					{"Category", task.Category},
					{"Due", formatTime(task.Due)},
					{"Created", formatTime(task.Created)},
					{"Repeat", model.DescribeRecurrence(task.Recurrence, task.Extra)},
					{"Status", status(task, time.Now())},
					{"XP", task.XP},
				})
				tw.Render()
				return nil
			})
		},
	}
}

func resolveTask(ctx context.Context, a *app, ref string) (model.Task, error) {
	id, err := a.tasks.ResolveID(ctx, cfg.Owner, ref)
	if err != nil {
		return model.Task{}, err
	}
	return a.tasks.GetTask(ctx, id)
}

func doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task between done and open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				id, err := a.tasks.ResolveID(ctx, cfg.Owner, args[0])
				if err != nil {
					return err
				}
				res, err := a.completion.Toggle(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					out := httpapi.ToggleResponse{Task: httpapi.ToTaskResponse(res.Task), XP: res.XP}
					if res.Next != nil {
						next := httpapi.ToTaskResponse(*res.Next)
						out.Next = &next
					}
					if res.Profile != nil {
						p := httpapi.ToProfileResponse(*res.Profile)
						out.Profile = &p
					}
					return printJSON(out)
				}
				if !res.Task.Done {
					fmt.Printf("Reopened %q\n", res.Task.Title)
					return nil
				}
				fmt.Printf("Done %q (+%d XP)\n", res.Task.Title, res.XP)
				if res.Profile != nil {
					fmt.Printf("Coins %d, streak %d\n", res.Profile.Coins, res.Profile.Streak)
				}
				if res.Next != nil {
					fmt.Printf("Next occurrence %s due %s\n", service.ShortID(res.Next.ID), formatTime(res.Next.Due))
				}
				return nil
			})
		},
	}
}

func editCmd() *cobra.Command {
	var due string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's due time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dueAt, err := service.ParseDue(due, time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				id, err := a.tasks.ResolveID(ctx, cfg.Owner, args[0])
				if err != nil {
					return err
				}
				task, err := a.tasks.EditDue(ctx, id, dueAt)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(httpapi.ToTaskResponse(task))
				}
				fmt.Printf("%q now due %s\n", task.Title, formatTime(task.Due))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&due, "due", "d", "", "new due date and time")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func snoozeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snooze <id> [minutes]",
		Short: "Push a task's due time back (default 10 minutes)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes := 10
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("minutes must be a number: %w", service.ErrInvalidInput)
				}
				minutes = n
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				id, err := a.tasks.ResolveID(ctx, cfg.Owner, args[0])
				if err != nil {
					return err
				}
				task, err := a.tasks.Snooze(ctx, id, minutes)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(httpapi.ToTaskResponse(task))
				}
				fmt.Printf("Snoozed %q until %s\n", task.Title, formatTime(task.Due))
				return nil
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				task, err := resolveTask(ctx, a, args[0])
				if err != nil {
					return err
				}
				if err := a.tasks.DeleteTask(ctx, task.ID); err != nil {
					return err
				}
				fmt.Printf("Deleted %q\n", task.Title)
				return nil
			})
		},
	}
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show open and done counts per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				stats, err := a.categories.List(ctx, cfg.Owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Category", "Open", "Done"})
				for _, s := range stats {
					tw.AppendRow(table.Row{s.Name, s.Open, s.Done})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print today's report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				sum, err := a.reminders.DailySummary(ctx, cfg.Owner, time.Now())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Print(sum.Text(false))
				return nil
			})
		},
	}
}

func registerCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(password)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				p, err := a.profiles.Register(ctx, args[0], secret)
				if err != nil {
					return err
				}
				fmt.Printf("Registered %s. Use --owner %s or TODOZEN_OWNER=%s to work as this profile.\n",
					p.Username, p.Username, p.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	return cmd
}

func loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Check a profile's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(password)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				p, err := a.profiles.Authenticate(ctx, args[0], secret)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(httpapi.ToProfileResponse(p))
				}
				fmt.Printf("Welcome back, %s: %d coins, %d day streak\n", p.Username, p.Coins, p.Streak)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	return cmd
}

func readSecret(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show coins and streak for the current owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				p, err := a.profiles.Get(ctx, cfg.Owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(httpapi.ToProfileResponse(p))
				}
				last := "never"
				if p.LastCompleted != nil {
					last = formatTime(*p.LastCompleted)
				}
				fmt.Printf("%s: %d coins, %d day streak, last completion %s\n", p.Username, p.Coins, p.Streak, last)
				return nil
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write every task to a backup file (stdout when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			f, err := backupFormat(format, path)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				out := os.Stdout
				if path != "" {
					file, err := os.Create(path)
					if err != nil {
						return err
					}
					defer file.Close()
					out = file
				}
				n, err := backup.Export(ctx, a.store, out, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Exported %d tasks\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json or yaml (default from file extension)")
	return cmd
}

func importCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore tasks from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := backupFormat(format, args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				n, err := backup.Import(ctx, a.store, file, f)
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d tasks\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json or yaml (default from file extension)")
	return cmd
}

func backupFormat(flagValue, path string) (backup.Format, error) {
	if flagValue != "" {
		return backup.ParseFormat(flagValue)
	}
	return backup.ParseFormat(path)
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the remote mirror with the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				if !a.reconciler.Enabled() {
					return errors.New("mirror is not reachable or disabled")
				}
				res, err := a.reconciler.Reconcile(ctx, a.store)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Pushed %d, pruned %d, failed %d\n", res.Pushed, res.Deleted, res.Failed)
				return nil
			})
		},
	}
}
