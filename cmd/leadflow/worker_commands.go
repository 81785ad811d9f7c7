package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
	"leadflow/internal/workers"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:     "worker",
		Aliases: []string{"workers"},
		Short:   "Inspect and control worker roles",
	}
	workerCmd.AddCommand(newWorkerListCommand(ctx))
	workerCmd.AddCommand(newWorkerSetCommand(ctx))
	workerCmd.AddCommand(newWorkerResetDailyCommand(ctx))
	return workerCmd
}

func newWorkerListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show availability and counters per role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				list, err := a.Workers.List(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				rows := make([][]string, 0, len(list))
				for _, w := range list {
					rows = append(rows, []string{
						displayName(string(w.Role)),
						displayName(string(w.Availability)),
						formatID(w.CurrentTaskID),
						strconv.Itoa(w.CompletedToday),
						strconv.Itoa(w.CompletedTotal),
						formatRelative(w.DailyResetAt),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Role", "Availability", "Task", "Today", "Total", "Reset"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newWorkerSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <role> <available|busy|offline>",
		Short: "Change a role's availability",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := workers.ParseRole(args[0])
			if err != nil {
				return err
			}
			state, err := workers.ParseAvailability(args[1])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				w, err := a.Workers.SetAvailability(cmd.Context(), role, state)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, w)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", displayName(string(w.Role)), w.Availability)
				return nil
			})
		},
	}
}

func newWorkerResetDailyCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset-daily [role]",
		Short: "Zero the daily completion counter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var roles []workers.Role
			switch {
			case all:
				roles = workers.Roles()
			case len(args) == 1:
				role, err := workers.ParseRole(args[0])
				if err != nil {
					return err
				}
				roles = []workers.Role{role}
			default:
				return fmt.Errorf("a role or --all is required")
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				for _, role := range roles {
					if _, err := a.Workers.ResetDailyCounters(cmd.Context(), role); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset daily counters for %d role(s)\n", len(roles))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reset every role")
	return cmd
}
