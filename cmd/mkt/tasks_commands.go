package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"marketplace/internal/api"
	"marketplace/internal/queue"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage background tasks",
	}

	tasksCmd.AddCommand(newTasksStatusCommand(ctx))
	tasksCmd.AddCommand(newTasksListCommand(ctx))
	tasksCmd.AddCommand(newTasksRetryCommand(ctx))
	tasksCmd.AddCommand(newTasksClearCommand(ctx))

	return tasksCmd
}

func newTasksStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task counts by status and database health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q *queue.Store) error {
				counts, err := api.NewTaskService(q).Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable([]column{{"Status", false}, {"Count", true}}, buildStatusRows(counts)))

				health, err := q.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Database: %s (schema v%d, integrity ok: %s)\n", health.DBPath, health.SchemaVersion, yesNo(health.IntegrityCheck))
				if health.Error != "" {
					fmt.Fprintf(out, "Database error: %s\n", health.Error)
				}
				return nil
			})
		},
	}
}

func buildStatusRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, status := range queue.AllStatuses() {
		rows = append(rows, []string{string(status), strconv.Itoa(counts[string(status)])})
	}
	return rows
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q *queue.Store) error {
				tasks, err := api.NewTaskService(q).List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.TaskListResponse{Items: tasks})
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]column{{"ID", true}, {"Kind", false}, {"Status", false}, {"Attempts", true}, {"Updated", false}, {"Error", false}},
					buildTaskRows(tasks),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by task status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tasks as JSON")
	return cmd
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown task status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func buildTaskRows(tasks []api.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Kind,
			t.Status,
			fmt.Sprintf("%d/%d", t.Attempts, t.MaxAttempts),
			t.UpdatedAt,
			truncate(t.Error, 60),
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len([]rune(value)) <= limit {
		return value
	}
	return string([]rune(value)[:limit-1]) + "…"
}

func newTasksRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed tasks back to pending",
		Long:  "Retry the given failed tasks, or every failed task when no ids are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid task id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withQueue(func(q *queue.Store) error {
				n, err := q.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d tasks\n", n)
				return nil
			})
		},
	}
}

func newTasksClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := 0
			for _, flag := range []bool{clearCompleted, clearFailed, clearAll} {
				if flag {
					selected++
				}
			}
			if selected != 1 {
				return errors.New("specify exactly one of --completed, --failed, or --all")
			}
			return ctx.withQueue(func(q *queue.Store) error {
				var (
					removed int64
					label   string
					err     error
				)
				switch {
				case clearCompleted:
					removed, err = q.ClearCompleted(cmd.Context())
					label = "completed "
				case clearFailed:
					removed, err = q.ClearFailed(cmd.Context())
					label = "failed "
				default:
					removed, err = q.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %stasks\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only finished tasks")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed tasks")
	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every task")
	return cmd
}
