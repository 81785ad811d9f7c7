package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
	"leadflow/internal/dispatch"
	"leadflow/internal/services"
	"leadflow/internal/workers"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Enqueue, claim, and inspect tasks",
	}

	taskCmd.AddCommand(newTaskEnqueueCommand(ctx))
	taskCmd.AddCommand(newTaskClaimCommand(ctx))
	taskCmd.AddCommand(newTaskCompleteCommand(ctx))
	taskCmd.AddCommand(newTaskFailCommand(ctx))
	taskCmd.AddCommand(newTaskCancelCommand(ctx))
	taskCmd.AddCommand(newTaskHeartbeatCommand(ctx))
	taskCmd.AddCommand(newTaskListCommand(ctx))
	taskCmd.AddCommand(newTaskShowCommand(ctx))
	taskCmd.AddCommand(newTaskReclaimCommand(ctx))
	taskCmd.AddCommand(newTaskStatsCommand(ctx))

	return taskCmd
}

func newTaskEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		kind       string
		role       string
		priority   int
		customerID int64
		parentID   int64
		input      string
		retryLimit int
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Create a pending task",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dispatch.EnqueueRequest{
				Kind:       kind,
				Role:       workers.Role(role),
				Priority:   priority,
				CustomerID: customerID,
				ParentID:   parentID,
				Input:      json.RawMessage(input),
			}
			if cmd.Flags().Changed("retry-limit") {
				req.RetryLimit = &retryLimit
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				task, err := a.Dispatcher.Enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued task #%d (%s for %s, priority %d)\n",
					task.ID, task.Kind, displayName(string(task.Role)), task.Priority)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Task kind, e.g. draft_copy")
	cmd.Flags().StringVar(&role, "role", "", "Worker role (aliases such as copywriter are accepted)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Priority, 1 is most urgent (default: derived from the customer level)")
	cmd.Flags().Int64Var(&customerID, "customer", 0, "Customer the task concerns")
	cmd.Flags().Int64Var(&parentID, "parent", 0, "Parent task id")
	cmd.Flags().StringVar(&input, "input", "", "Task input as a JSON document")
	cmd.Flags().IntVar(&retryLimit, "retry-limit", 0, "Retries allowed after the first attempt")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newTaskClaimCommand(ctx *commandContext) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim the next task for a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				task, err := a.Dispatcher.Claim(cmd.Context(), workers.Role(role))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, task)
				}
				if task == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "No pending tasks for %s\n", displayName(role))
					return nil
				}
				printTask(cmd.OutOrStdout(), task)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Worker role")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newTaskCompleteCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Report a claimed task as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			var raw json.RawMessage
			if strings.TrimSpace(output) != "" {
				raw = json.RawMessage(output)
				if !json.Valid(raw) {
					return fmt.Errorf("--output is not valid JSON")
				}
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				task, err := a.Dispatcher.Complete(cmd.Context(), id, raw)
				if err != nil {
					return err
				}
				return reportTransition(ctx, cmd, task)
			})
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Task output as a JSON document")
	return cmd
}

func newTaskFailCommand(ctx *commandContext) *cobra.Command {
	var (
		message   string
		permanent bool
	)

	cmd := &cobra.Command{
		Use:   "fail <id>",
		Short: "Report a claimed task as failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			marker := services.ErrTransient
			if permanent {
				marker = services.ErrPermanent
			}
			cause := services.Wrap(marker, "cli", "fail", message, nil)
			return ctx.withApp(cmd, func(a *app.App) error {
				task, err := a.Dispatcher.Fail(cmd.Context(), id, cause)
				if err != nil {
					return err
				}
				return reportTransition(ctx, cmd, task)
			})
		},
	}

	cmd.Flags().StringVarP(&message, "error", "e", "reported by operator", "Failure description")
	cmd.Flags().BoolVar(&permanent, "permanent", false, "Skip remaining retries")
	return cmd
}

func newTaskCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a task and its open descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				task, err := a.Dispatcher.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				return reportTransition(ctx, cmd, task)
			})
		},
	}
}

func newTaskHeartbeatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat <id>",
		Short: "Refresh the liveness stamp of a processing task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				if err := a.Dispatcher.Heartbeat(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Heartbeat recorded for task #%d\n", id)
				return nil
			})
		},
	}
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses   []string
		role       string
		customerID int64
		parentID   int64
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := dispatch.Filter{
				Role:       workers.Role(role),
				CustomerID: customerID,
				ParentID:   parentID,
				Limit:      limit,
			}
			for _, value := range statuses {
				status, err := dispatch.ParseStatus(value)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				tasks, err := a.Dispatcher.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, tasks)
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks found")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTaskTable(tasks))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&role, "role", "", "Filter by role")
	cmd.Flags().Int64Var(&customerID, "customer", 0, "Filter by customer")
	cmd.Flags().Int64Var(&parentID, "parent", 0, "Filter by parent task")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows")
	return cmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task and its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				task, err := a.Dispatcher.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				children, err := a.Dispatcher.Children(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"task": task, "children": children})
				}
				out := cmd.OutOrStdout()
				printTask(out, task)
				if len(children) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Children:")
					fmt.Fprint(out, renderTaskTable(children))
				}
				return nil
			})
		},
	}
}

func newTaskReclaimCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Fail processing tasks whose heartbeat is stale",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				window := olderThan
				if window <= 0 {
					window = a.Config.ClaimTimeout()
				}
				count, err := a.Dispatcher.ReclaimStale(cmd.Context(), time.Now().UTC().Add(-window))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d stale task(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Staleness window (default: dispatch.claim_timeout)")
	return cmd
}

func newTaskStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count tasks per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				stats, err := a.Dispatcher.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderStatusCounts(stats))
				return nil
			})
		},
	}
}

func reportTransition(ctx *commandContext, cmd *cobra.Command, task *dispatch.Task) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, task)
	}
	state := displayName(string(task.Status))
	if task.Parked() {
		state = "Waiting for children"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task #%d: %s\n", task.ID, state)
	if task.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", task.Error)
	}
	return nil
}

func printTask(out io.Writer, task *dispatch.Task) {
	rows := [][]string{
		{"ID", strconv.FormatInt(task.ID, 10)},
		{"Kind", task.Kind},
		{"Role", displayName(string(task.Role))},
		{"Status", displayName(string(task.Status))},
		{"Priority", strconv.Itoa(task.Priority)},
		{"Customer", formatID(task.CustomerID)},
		{"Parent", formatID(task.ParentID)},
		{"Attempts", fmt.Sprintf("%d of %d", task.RetryCount+1, task.RetryLimit+1)},
		{"Awaiting children", yesNo(task.AwaitingChildren)},
		{"Input", compactJSON(task.Input, 80)},
		{"Output", compactJSON(task.Output, 80)},
		{"Error", orDash(task.Error)},
		{"Created", formatTimestamp(task.CreatedAt)},
		{"Heartbeat", formatRelative(task.LastHeartbeat)},
	}
	fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
}

func renderTaskTable(tasks []dispatch.Task) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		status := displayName(string(t.Status))
		if t.Parked() {
			status += " (waiting)"
		}
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Kind,
			displayName(string(t.Role)),
			status,
			strconv.Itoa(t.Priority),
			formatID(t.CustomerID),
			formatID(t.ParentID),
			fmt.Sprintf("%d/%d", t.RetryCount, t.RetryLimit),
		})
	}
	return renderTable(
		[]string{"ID", "Kind", "Role", "Status", "Priority", "Customer", "Parent", "Retries"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderStatusCounts(stats map[dispatch.Status]int) string {
	rows := make([][]string, 0, len(stats))
	total := 0
	for _, status := range dispatch.Statuses() {
		rows = append(rows, []string{displayName(string(status)), strconv.Itoa(stats[status])})
		total += stats[status]
	}
	return renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight},
		"Total", strconv.Itoa(total))
}
