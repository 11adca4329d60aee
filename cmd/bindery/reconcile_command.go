package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run a vendor reconciliation sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			var result struct {
				Checked int `json:"checked"`
				Failed  int `json:"failed"`
			}
			if err := client.post(cmd.Context(), "/api/reconcile", nil, &result); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checked %d orders, %d poll failures\n", result.Checked, result.Failed)
			return nil
		},
	}
}
