package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/app"
)

var sendCmd = &cobra.Command{
	Use:   "send <campaign-id>",
	Short: "Send or resume a campaign and wait for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Sender.Send(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		})
	},
}

var testSendCmd = &cobra.Command{
	Use:   "test-send <campaign-id> <email>...",
	Short: "Send a campaign to test addresses without touching its lifecycle",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Sender.SendTest(ctx, args[0], args[1:])
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule <campaign-id> <RFC3339 time>",
	Short: "Schedule a draft campaign",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := time.Parse(time.RFC3339, args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Campaigns.Schedule(ctx, args[0], at); err != nil {
				return err
			}
			return printCampaign(ctx, cmd, a, args[0])
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <campaign-id>",
	Short: "Cancel a draft or scheduled campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Campaigns.Cancel(ctx, args[0]); err != nil {
				return err
			}
			return printCampaign(ctx, cmd, a, args[0])
		})
	},
}

var duplicateCreatedBy string

var duplicateCmd = &cobra.Command{
	Use:   "duplicate <campaign-id>",
	Short: "Copy a campaign into a new draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			c, err := a.Campaigns.Duplicate(ctx, args[0], duplicateCreatedBy)
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		})
	},
}

func printCampaign(ctx context.Context, cmd *cobra.Command, a *app.App, id string) error {
	c, err := a.Campaigns.Load(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd, c)
}

func init() {
	duplicateCmd.Flags().StringVar(&duplicateCreatedBy, "created-by", "campaignctl", "author recorded on the copy")
	rootCmd.AddCommand(sendCmd, testSendCmd, scheduleCmd, cancelCmd, duplicateCmd)
}
