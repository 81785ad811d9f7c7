package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
	"leadflow/internal/scoring"
)

func newSignalCommand(ctx *commandContext) *cobra.Command {
	signalCmd := &cobra.Command{
		Use:   "signal",
		Short: "Apply or list intent signals",
	}
	signalCmd.AddCommand(newSignalApplyCommand(ctx))
	signalCmd.AddCommand(newSignalListCommand(ctx))
	return signalCmd
}

func newSignalApplyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <customer-id> <signal>...",
		Short: "Adjust a customer's score without recording a message",
		Long: "Apply adds the signal deltas to the stored score directly. Adjustments made\n" +
			"this way are not in the conversation ledger and appear as drift in replay.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				result, err := a.Engine.ApplySignals(cmd.Context(), id, args[1:])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printScoreResult(cmd, result)
				return nil
			})
		},
	}
}

func newSignalListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the active signal table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rules := scoring.RulesFromConfig(cfg.Scoring)
			if ctx.jsonOutput() {
				return writeJSON(cmd, rules)
			}
			rows := make([][]string, 0, len(rules.Signals))
			for _, name := range rules.Vocabulary() {
				rows = append(rows, []string{name, fmt.Sprintf("%+d", rules.Signals[name])})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rules version %s (S>=%d A>=%d B>=%d)\n", rules.Version,
				rules.Thresholds.S, rules.Thresholds.A, rules.Thresholds.B)
			fmt.Fprint(out, renderTable([]string{"Signal", "Delta"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func printScoreResult(cmd *cobra.Command, result scoring.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Customer #%d: %d -> %d (%+d)\n", result.CustomerID, result.PreviousScore, result.NewScore, result.Delta)
	if result.Crossed() {
		fmt.Fprintf(out, "Level: %s -> %s\n", result.PreviousLevel, result.NewLevel)
	} else {
		fmt.Fprintf(out, "Level: %s\n", result.NewLevel)
	}
	if len(result.Unknown) > 0 {
		fmt.Fprintf(out, "Ignored unknown signals: %s\n", strings.Join(result.Unknown, ", "))
	}
	if result.Notification != nil {
		fmt.Fprintf(out, "Notification #%d raised\n", result.Notification.ID)
	}
}
