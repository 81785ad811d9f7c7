package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
	"leadflow/internal/notify"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:     "notify",
		Aliases: []string{"notifications"},
		Short:   "Read sales notifications",
	}
	notifyCmd.AddCommand(newNotifyListCommand(ctx))
	notifyCmd.AddCommand(newNotifyReadCommand(ctx))
	return notifyCmd
}

func newNotifyListCommand(ctx *commandContext) *cobra.Command {
	var (
		unread     bool
		customerID int64
		category   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := notify.Filter{
				UnreadOnly: unread,
				CustomerID: customerID,
				Category:   notify.Category(category),
				Limit:      limit,
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				list, err := a.Notifications.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No notifications")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, n := range list {
					rows = append(rows, []string{
						strconv.FormatInt(n.ID, 10),
						formatTimestamp(n.CreatedAt),
						displayName(string(n.Category)),
						formatID(n.CustomerID),
						formatID(n.TaskID),
						describeNotification(n),
						yesNo(n.Read),
						deliveryState(n),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Time", "Category", "Customer", "Task", "Detail", "Read", "Delivery"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "Only unread notifications")
	cmd.Flags().Int64Var(&customerID, "customer", 0, "Filter by customer")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category (level_crossed, task_completed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows")
	return cmd
}

func newNotifyReadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>...",
		Short: "Mark notifications as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg, "notification")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				for _, id := range ids {
					if _, err := a.Notifications.MarkRead(cmd.Context(), id); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d notification(s) read\n", len(ids))
				return nil
			})
		},
	}
}

func describeNotification(n notify.Notification) string {
	switch n.Category {
	case notify.CategoryLevelCrossed:
		return fmt.Sprintf("%s -> %s", n.PreviousLevel, n.NewLevel)
	case notify.CategoryTaskCompleted:
		return orDash(n.Payload.TaskKind)
	default:
		return "-"
	}
}

func deliveryState(n notify.Notification) string {
	switch {
	case n.DeliveredAt != nil:
		return "sent " + formatRelative(n.DeliveredAt)
	case n.LastDeliveryError != "":
		return fmt.Sprintf("failed x%d", n.DeliveryAttempts)
	default:
		return "pending"
	}
}
