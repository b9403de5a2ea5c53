package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/app"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
)

var (
	resolveFilterFile string
	resolveLimit      int
	resolveCountOnly  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [email]...",
	Short: "Preview the audience of a recipient filter",
	Long: `Resolve a recipient filter read from --filter (a JSON file, or - for stdin)
plus any extra addresses given as arguments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var spec domain.RecipientFilterSpec
		if resolveFilterFile != "" {
			if err := readJSON(resolveFilterFile, &spec); err != nil {
				return fmt.Errorf("read filter: %w", err)
			}
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.Resolver.Resolve(ctx, spec, args, recipient.ResolveOptions{
				Limit:     resolveLimit,
				CountOnly: resolveCountOnly,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

func readJSON(path string, dst any) error {
	f := os.Stdin
	if path != "-" {
		var err error
		if f, err = os.Open(path); err != nil {
			return err
		}
		defer f.Close()
	}
	return json.NewDecoder(f).Decode(dst)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFilterFile, "filter", "", "JSON filter file, - for stdin")
	resolveCmd.Flags().IntVar(&resolveLimit, "limit", 100, "maximum recipients to print")
	resolveCmd.Flags().BoolVar(&resolveCountOnly, "count", false, "print only the audience size")
	rootCmd.AddCommand(resolveCmd)
}
