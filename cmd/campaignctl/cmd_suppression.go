package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/app"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
)

var suppressReason string

var suppressCmd = &cobra.Command{
	Use:   "suppress <email>...",
	Short: "Add addresses to the global suppression list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			for _, email := range args {
				created, err := a.Suppressions.Suppress(ctx, suppression.SuppressInput{
					Email:  email,
					Reason: domain.SuppressionReason(suppressReason),
					Source: domain.SourceAdmin,
				})
				if err != nil {
					return fmt.Errorf("%s: %w", email, err)
				}
				state := "already suppressed"
				if created {
					state = "suppressed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", domain.NormalizeEmail(email), state)
			}
			return nil
		})
	},
}

var resubscribeCmd = &cobra.Command{
	Use:   "resubscribe <email>",
	Short: "Deactivate an address's suppression",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.Suppressions.Resubscribe(ctx, domain.NormalizeEmail(args[0]))
		})
	},
}

func init() {
	suppressCmd.Flags().StringVar(&suppressReason, "reason", string(domain.ReasonManual), "suppression reason")
	rootCmd.AddCommand(suppressCmd, resubscribeCmd)
}
