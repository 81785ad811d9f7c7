package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
	"leadflow/internal/customer"
	"leadflow/internal/intake"
	"leadflow/internal/ledger"
	"leadflow/internal/workers"
)

func newMessageCommand(ctx *commandContext) *cobra.Command {
	messageCmd := &cobra.Command{
		Use:   "message",
		Short: "Record conversation messages",
	}
	messageCmd.AddCommand(newMessageRecordCommand(ctx))
	return messageCmd
}

func newMessageRecordCommand(ctx *commandContext) *cobra.Command {
	var (
		customerID int64
		profile    customer.Profile
		sessionID  string
		role       string
		direction  string
		signals    []string
	)

	cmd := &cobra.Command{
		Use:   "record <content>",
		Short: "Record one message and score inbound signals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if customerID <= 0 && strings.TrimSpace(profile.ExternalRef) == "" {
				return fmt.Errorf("one of --customer or --ref is required")
			}
			parsedRole, err := workers.ParseRole(role)
			if err != nil {
				return err
			}
			parsedDirection, err := ledger.ParseDirection(direction)
			if err != nil {
				return err
			}
			req := intake.Request{
				CustomerID: customerID,
				Profile:    profile,
				SessionID:  sessionID,
				Role:       parsedRole,
				Direction:  parsedDirection,
				Content:    args[0],
				Signals:    signals,
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				result, err := a.Intake.Record(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				if result.CreatedCustomer {
					fmt.Fprintf(out, "Created customer #%d\n", result.Customer.ID)
				}
				fmt.Fprintf(out, "Recorded entry #%d in session %s (seq %d)\n",
					result.Entry.ID, result.Entry.SessionID, result.Entry.Seq)
				if result.Score != nil {
					printScoreResult(cmd, *result.Score)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&customerID, "customer", 0, "Existing customer id")
	cmd.Flags().StringVar(&profile.ExternalRef, "ref", "", "External reference; creates the customer when unknown")
	cmd.Flags().StringVar(&profile.Name, "name", "", "Name used when the customer is created")
	cmd.Flags().StringVar(&profile.SourceChannel, "source", "", "Channel used when the customer is created")
	cmd.Flags().StringVar(&sessionID, "session", "", "Conversation session (default: start a new one)")
	cmd.Flags().StringVar(&role, "role", string(workers.RoleChat), "Worker role handling the conversation")
	cmd.Flags().StringVar(&direction, "direction", string(ledger.Inbound), "inbound or outbound")
	cmd.Flags().StringSliceVar(&signals, "signal", nil, "Intent signal detected in the message (repeatable)")
	return cmd
}
