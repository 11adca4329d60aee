package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bindery/internal/orders"
)

func newOrdersCommand(ctx *commandContext) *cobra.Command {
	ordersCmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and manage print orders",
	}

	ordersCmd.AddCommand(newOrdersListCommand(ctx))
	ordersCmd.AddCommand(newOrdersShowCommand(ctx))
	ordersCmd.AddCommand(newOrdersRetryCommand(ctx))
	ordersCmd.AddCommand(newOrdersPayCommand(ctx))

	return ordersCmd
}

func newOrdersListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List print orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var statuses []orders.Status
			for _, value := range strings.Split(statusFilter, ",") {
				value = strings.TrimSpace(value)
				if value == "" {
					continue
				}
				status, ok := orders.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}

			store, err := orders.Open(cfg)
			if err != nil {
				return fmt.Errorf("open order store: %w", err)
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list orders: %w", err)
			}

			if jsonOutput {
				views := make([]orderView, 0, len(list))
				for _, order := range list {
					views = append(views, orderToView(order))
				}
				return writeJSON(cmd, map[string]any{"orders": views})
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No orders found")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, order := range list {
				rows = append(rows, []string{
					order.ID,
					string(order.Status),
					order.VendorJobID,
					order.TrackingNum,
					order.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Vendor Job", "Tracking", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (e.g. submitted,shipped)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newOrdersShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show a single order in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := orders.Open(cfg)
			if err != nil {
				return fmt.Errorf("open order store: %w", err)
			}
			defer store.Close()

			order, err := store.GetByID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load order: %w", err)
			}
			if order == nil {
				return fmt.Errorf("order %s not found", args[0])
			}

			if jsonOutput {
				return writeJSON(cmd, orderToView(order))
			}

			printOrderDetail(cmd, order)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func printOrderDetail(cmd *cobra.Command, order *orders.Order) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Order:         %s\n", order.ID)
	fmt.Fprintf(out, "Book:          %s\n", order.BookID)
	fmt.Fprintf(out, "Status:        %s\n", order.Status)
	if order.VendorJobID != "" {
		fmt.Fprintf(out, "Vendor job:    %s\n", order.VendorJobID)
	}
	if order.VendorStatus != "" {
		fmt.Fprintf(out, "Vendor status: %s\n", order.VendorStatus)
	}
	if order.InteriorRef != "" {
		fmt.Fprintf(out, "Interior ref:  %s\n", order.InteriorRef)
	}
	if order.CoverRef != "" {
		fmt.Fprintf(out, "Cover ref:     %s\n", order.CoverRef)
	}
	if order.TrackingNum != "" {
		fmt.Fprintf(out, "Tracking:      %s", order.TrackingNum)
		if order.TrackingURL != "" {
			fmt.Fprintf(out, " (%s)", order.TrackingURL)
		}
		fmt.Fprintln(out)
	}
	if order.FailureReason != "" {
		fmt.Fprintf(out, "Failure:       %s\n", order.FailureReason)
	}
	fmt.Fprintf(out, "Contact:       %s\n", order.ContactEmail)
	fmt.Fprintf(out, "Price:         %d %s\n", order.PriceCents, order.Currency)
	fmt.Fprintf(out, "Created:       %s\n", order.CreatedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(out, "Updated:       %s\n", order.UpdatedAt.Local().Format(time.RFC1123))
}

func orderToView(order *orders.Order) orderView {
	return orderView{
		ID:            order.ID,
		BookID:        order.BookID,
		Status:        string(order.Status),
		VendorJobID:   order.VendorJobID,
		VendorStatus:  order.VendorStatus,
		TrackingNum:   order.TrackingNum,
		TrackingURL:   order.TrackingURL,
		FailureReason: order.FailureReason,
		CreatedAt:     order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     order.UpdatedAt.Format(time.RFC3339),
	}
}

// newOrdersRetryCommand asks the daemon to retry a failed order. The
// daemon owns the vendor client and the single-writer order pipeline, so
// retries are never run directly against the store.
func newOrdersRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <order-id>",
		Short: "Retry a failed order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			var view orderView
			if err := client.post(cmd.Context(), "/api/orders/"+args[0]+"/retry", nil, &view); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s\n", view.ID, view.Status)
			return nil
		},
	}
}

func newOrdersPayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pay <order-id>",
		Short: "Simulate a payment-confirmed webhook for an order",
		Long: "Posts a payment-confirmed event to the daemon, which generates the\n" +
			"PDFs and submits the order to the print vendor before returning.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			payload := map[string]string{"order_id": args[0]}
			var view orderView
			if err := client.post(cmd.Context(), "/api/webhooks/payment", payload, &view); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s\n", view.ID, view.Status)
			if view.VendorJobID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Vendor job: %s\n", view.VendorJobID)
			}
			return nil
		},
	}
}
