package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newUsageCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Fetch per-line usage history",
	}

	cmd.AddCommand(newUsageMonthlyCmd(app), newUsageDailyCmd(app))

	return cmd
}

func newUsageMonthlyCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "monthly",
		Short: "Fetch monthly usage per line (GB)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUsageFetch(cmd, app, "monthly")
		},
	}
}

func newUsageDailyCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Fetch daily usage per line (MB)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUsageFetch(cmd, app, "daily")
		},
	}
}

func runUsageFetch(cmd *cobra.Command, app *app, period string) error {
	ctx := cmd.Context()

	creds, err := resolveCredentials(ctx, app, nil)
	if err != nil {
		return err
	}

	var out any
	err = runFetchSpinner(ctx, cmd.ErrOrStderr(), "Fetching usage history...", func(ctx context.Context) error {
		switch period {
		case "monthly":
			services, err := app.client.FetchMonthlyUsage(ctx, creds)
			out = services
			return err
		case "daily":
			services, err := app.client.FetchDailyUsage(ctx, creds)
			if err == nil {
				app.refresh.CheckDailyUsage(ctx, services)
			}
			out = services
			return err
		default:
			return fmt.Errorf("unknown usage period %q", period)
		}
	})
	if err != nil {
		return err
	}

	return printJSON(cmd, out)
}
