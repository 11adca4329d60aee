package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/orders"
)

type statusResponse struct {
	Running  bool                 `json:"running"`
	Orders   orders.HealthSummary `json:"orders"`
	Database string               `json:"database"`
	LockFile string               `json:"lock_file"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and order pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			var status statusResponse
			if err := client.get(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			runningKind := statusError
			runningMsg := "not running"
			if status.Running {
				runningKind = statusOK
				runningMsg = "running"
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", runningKind, runningMsg, colorize))
			fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.Database, colorize))
			fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFile, colorize))

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Orders", colorize) {
				fmt.Fprintln(out, line)
			}
			summary := status.Orders
			fmt.Fprintln(out, renderStatusLine("Total", statusInfo, fmt.Sprintf("%d", summary.Total), colorize))
			fmt.Fprintln(out, renderStatusLine("Pending", statusInfo, fmt.Sprintf("%d", summary.Pending), colorize))
			fmt.Fprintln(out, renderStatusLine("In flight", statusInfo, fmt.Sprintf("%d", summary.InFlight), colorize))
			fmt.Fprintln(out, renderStatusLine("Shipped", statusOK, fmt.Sprintf("%d", summary.Shipped), colorize))
			fmt.Fprintln(out, renderStatusLine("Delivered", statusOK, fmt.Sprintf("%d", summary.Delivered), colorize))
			failedKind := statusOK
			if summary.Failed > 0 {
				failedKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d", summary.Failed), colorize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}
