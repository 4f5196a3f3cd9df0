package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BuzzLyutic/study-planner/internal/display"
	"github.com/BuzzLyutic/study-planner/internal/model"
)

// withUser opens the app signed in as the --user flag.
func withUser(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		return fmt.Errorf("--user is required")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.session.SetIdentity(model.NewIdentity(user, "", "", ""))
	return fn(ctx, a)
}

func userCmd(use, short string, run func(cmd *cobra.Command, ctx context.Context, a *app) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd, func(ctx context.Context, a *app) error {
				return run(cmd, ctx, a)
			})
		},
	}
	cmd.Flags().StringP("user", "u", "", "User id to act as")
	return cmd
}

func syncCmd() *cobra.Command {
	return userCmd("sync", "Replace the local tasks with the cloud copy", func(cmd *cobra.Command, ctx context.Context, a *app) error {
		if err := a.vm.SyncFromCloud().Wait(ctx); err != nil {
			return err
		}
		tasks, err := a.vm.CurrentTasks(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d tasks\n", len(tasks))
		return nil
	})
}

func clearCmd() *cobra.Command {
	return userCmd("clear", "Delete every task locally and in the cloud", func(cmd *cobra.Command, ctx context.Context, a *app) error {
		return a.vm.ClearAll().Wait(ctx)
	})
}

func exportCmd() *cobra.Command {
	cmd := userCmd("export", "Print the task list", func(cmd *cobra.Command, ctx context.Context, a *app) error {
		flags := cmd.Flags()
		rawFilter, _ := flags.GetString("filter")
		query, _ := flags.GetString("query")
		format, _ := flags.GetString("format")

		filter, err := display.ParseFilter(rawFilter)
		if err != nil {
			return err
		}
		tasks, err := a.vm.CurrentTasks(ctx)
		if err != nil {
			return err
		}
		return writeTasks(cmd.OutOrStdout(), format, display.Apply(tasks, filter, query))
	})
	cmd.Flags().String("filter", "All", "All, Open or Closed")
	cmd.Flags().StringP("query", "q", "", "Search in title and description")
	cmd.Flags().StringP("format", "f", "yaml", "yaml or json")
	return cmd
}

func writeTasks(w io.Writer, format string, tasks []model.Task) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tasks); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	return fmt.Errorf("unknown format %q", format)
}
