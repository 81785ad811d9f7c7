package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
	"leadflow/internal/customer"
)

func newCustomerCommand(ctx *commandContext) *cobra.Command {
	customerCmd := &cobra.Command{
		Use:     "customer",
		Aliases: []string{"customers"},
		Short:   "Manage tracked customers",
	}

	customerCmd.AddCommand(newCustomerAddCommand(ctx))
	customerCmd.AddCommand(newCustomerShowCommand(ctx))
	customerCmd.AddCommand(newCustomerListCommand(ctx))
	customerCmd.AddCommand(newCustomerReassignCommand(ctx))
	customerCmd.AddCommand(newCustomerDeactivateCommand(ctx))
	customerCmd.AddCommand(newCustomerFollowUpCommand(ctx))
	customerCmd.AddCommand(newCustomerReplayCommand(ctx))

	return customerCmd
}

func newCustomerAddCommand(ctx *commandContext) *cobra.Command {
	var profile customer.Profile

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				c, err := a.Customers.Create(cmd.Context(), profile)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added customer #%d (%s)\n", c.ID, orDash(c.Name))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&profile.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&profile.ExternalRef, "ref", "", "External reference, e.g. a chat account id")
	cmd.Flags().StringVar(&profile.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&profile.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&profile.Company, "company", "", "Company name")
	cmd.Flags().StringVar(&profile.SourceChannel, "source", "", "Acquisition channel")
	cmd.Flags().StringVar(&profile.Owner, "owner", "", "Responsible salesperson")
	return cmd
}

func newCustomerShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a customer profile and score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				c, err := a.Customers.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, c)
				}
				printCustomer(cmd.OutOrStdout(), c)
				return nil
			})
		},
	}
}

func newCustomerListCommand(ctx *commandContext) *cobra.Command {
	var (
		level      string
		owner      string
		activeOnly bool
		due        bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List customers by intent score",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := customer.Filter{
				Owner:      strings.TrimSpace(owner),
				ActiveOnly: activeOnly,
				Limit:      limit,
			}
			if strings.TrimSpace(level) != "" {
				parsed, err := customer.ParseLevel(level)
				if err != nil {
					return err
				}
				filter.Level = parsed
			}
			if due {
				now := time.Now().UTC()
				filter.DueBefore = &now
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				list, err := a.Customers.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No customers found")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, c := range list {
					rows = append(rows, []string{
						strconv.FormatInt(c.ID, 10),
						orDash(c.Name),
						orDash(c.Company),
						orDash(c.Owner),
						strconv.Itoa(c.IntentScore),
						c.IntentLevel.String(),
						strconv.Itoa(c.InteractionCount),
						formatRelative(c.LastContactAt),
						formatRelative(c.NextFollowUpAt),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Company", "Owner", "Score", "Level", "Interactions", "Last Contact", "Follow-up"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Filter by intent level (S, A, B, C)")
	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active customers")
	cmd.Flags().BoolVar(&due, "due", false, "Only customers with a follow-up due now")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows")
	return cmd
}

func newCustomerReassignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reassign <id> <owner>",
		Short: "Change the responsible salesperson",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				c, err := a.Customers.Reassign(cmd.Context(), id, args[1])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Customer #%d now owned by %s\n", c.ID, orDash(c.Owner))
				return nil
			})
		},
	}
}

func newCustomerDeactivateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Stop tracking a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				c, err := a.Customers.Deactivate(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Customer #%d deactivated\n", c.ID)
				return nil
			})
		},
	}
}

func newCustomerFollowUpCommand(ctx *commandContext) *cobra.Command {
	var (
		at   string
		in   time.Duration
		done bool
	)

	cmd := &cobra.Command{
		Use:   "follow-up <id>",
		Short: "Schedule or record a follow-up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			var when time.Time
			switch {
			case done:
			case strings.TrimSpace(at) != "":
				when, err = time.Parse(time.RFC3339, strings.TrimSpace(at))
				if err != nil {
					return fmt.Errorf("--at must be RFC 3339: %w", err)
				}
			case in > 0:
				when = time.Now().Add(in)
			default:
				return fmt.Errorf("one of --at, --in or --done is required")
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				var c *customer.Customer
				if done {
					c, err = a.Customers.RecordFollowUp(cmd.Context(), id)
				} else {
					c, err = a.Customers.ScheduleFollowUp(cmd.Context(), id, when.UTC())
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, c)
				}
				if done {
					fmt.Fprintf(cmd.OutOrStdout(), "Follow-up recorded for customer #%d\n", c.ID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Follow-up for customer #%d scheduled %s\n", c.ID, formatRelative(c.NextFollowUpAt))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Follow-up time (RFC 3339)")
	cmd.Flags().DurationVar(&in, "in", 0, "Follow-up delay from now, e.g. 48h")
	cmd.Flags().BoolVar(&done, "done", false, "Record that the follow-up happened")
	return cmd
}

func newCustomerReplayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <id>",
		Short: "Recompute the score from the conversation ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				report, err := a.Engine.Replay(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Stored:   %d (%s)\n", report.StoredScore, report.StoredLevel)
				fmt.Fprintf(out, "Replayed: %d (%s) from %d entries\n", report.ReplayedScore, report.ReplayedLevel, report.Entries)
				if report.Consistent() {
					fmt.Fprintln(out, "Ledger and score agree")
				} else {
					fmt.Fprintf(out, "Drift: %+d\n", report.Drift)
				}
				return nil
			})
		},
	}
}

func printCustomer(out io.Writer, c *customer.Customer) {
	rows := [][]string{
		{"ID", strconv.FormatInt(c.ID, 10)},
		{"Name", orDash(c.Name)},
		{"Reference", orDash(c.ExternalRef)},
		{"Company", orDash(c.Company)},
		{"Phone", orDash(c.Phone)},
		{"Email", orDash(c.Email)},
		{"Source", orDash(c.SourceChannel)},
		{"Owner", orDash(c.Owner)},
		{"Score", strconv.Itoa(c.IntentScore)},
		{"Level", c.IntentLevel.String()},
		{"Active", yesNo(c.Active)},
		{"Interactions", strconv.Itoa(c.InteractionCount)},
		{"Last contact", formatRelative(c.LastContactAt)},
		{"Next follow-up", formatRelative(c.NextFollowUpAt)},
		{"Last follow-up", formatRelative(c.LastFollowUpAt)},
		{"Created", formatTimestamp(c.CreatedAt)},
	}
	fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
}
