package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
	"leadflow/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		sessionID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history [customer-id]",
		Short: "Show conversation history for a customer or session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID = strings.TrimSpace(sessionID)
			if len(args) == 0 && sessionID == "" {
				return fmt.Errorf("a customer id or --session is required")
			}
			var customerID int64
			if len(args) == 1 {
				id, err := parseID(args[0], "customer")
				if err != nil {
					return err
				}
				customerID = id
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				var (
					entries []ledger.Entry
					err     error
				)
				if sessionID != "" {
					entries, err = a.Ledger.Session(cmd.Context(), sessionID)
				} else {
					entries, err = a.Ledger.History(cmd.Context(), customerID, limit)
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No messages recorded")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					delta := "-"
					if e.Scored() {
						delta = fmt.Sprintf("%+d", e.ScoreDelta)
					}
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10),
						formatTimestamp(e.CreatedAt),
						shortSession(e.SessionID),
						strconv.Itoa(e.Seq),
						displayName(string(e.Role)),
						string(e.Direction),
						truncate(e.Content, 60),
						orDash(strings.Join(e.Signals, ", ")),
						delta,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Time", "Session", "Seq", "Role", "Dir", "Content", "Signals", "Delta"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Show one session instead of a customer's history")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum messages, most recent first")
	return cmd
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
