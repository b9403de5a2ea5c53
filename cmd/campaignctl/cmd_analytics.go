package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/app"
)

var analyticsReconcile bool

var analyticsCmd = &cobra.Command{
	Use:   "analytics <campaign-id>",
	Short: "Summarize a campaign's engagement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if analyticsReconcile {
				if _, err := a.Analytics.Reconcile(ctx, args[0]); err != nil {
					return err
				}
			}
			summary, err := a.Analytics.Campaign(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		})
	},
}

var windowDays int

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Summarize engagement across all campaigns for the last N days",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			to := time.Now().UTC()
			summary, err := a.Analytics.Window(ctx, to.AddDate(0, 0, -windowDays), to)
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <campaign-id>",
	Short: "Archive a campaign's analytics snapshot to S3",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if a.Reports == nil {
				return fmt.Errorf("report export is not configured (set REPORTS_S3_BUCKET)")
			}
			key, err := a.Reports.Export(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		})
	},
}

func init() {
	analyticsCmd.Flags().BoolVar(&analyticsReconcile, "reconcile", false, "rewrite stored counters from engagement records first")
	windowCmd.Flags().IntVar(&windowDays, "days", 30, "window length in days")
	analyticsCmd.AddCommand(windowCmd)
	rootCmd.AddCommand(analyticsCmd, exportCmd)
}
