package cmd

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/snaka/mioportal/internal/domain"
)

func newBillCmd(app *app) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Fetch an itemized bill",
		Long:  "bill fetches the bill summary, picks the requested month (latest by default), and prints the scraped line items, subtotals, and tax breakdown as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBillDetail(cmd, app, month)
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "Billing month as YYYYMM (default: latest)")

	return cmd
}

func runBillDetail(cmd *cobra.Command, app *app, month string) error {
	ctx := cmd.Context()

	creds, err := resolveCredentials(ctx, app, nil)
	if err != nil {
		return err
	}

	var detail *domain.BillDetail
	err = runFetchSpinner(ctx, cmd.ErrOrStderr(), "Fetching bill detail...", func(ctx context.Context) error {
		summary, err := app.client.FetchBillSummary(ctx, creds)
		if err != nil {
			return err
		}

		entry, err := pickBillEntry(summary, month)
		if err != nil {
			return err
		}

		detail, err = app.client.FetchBillDetail(ctx, entry, creds)
		return err
	})
	if err != nil {
		return err
	}

	return printJSON(cmd, detail)
}

func pickBillEntry(summary domain.BillSummary, month string) (domain.BillEntry, error) {
	if len(summary.Entries) == 0 {
		return domain.BillEntry{}, fmt.Errorf("no bills available")
	}
	if month == "" {
		return summary.Entries[0], nil
	}

	entry, found := lo.Find(summary.Entries, func(e domain.BillEntry) bool {
		return e.Month == month
	})
	if !found {
		return domain.BillEntry{}, fmt.Errorf("no bill found for month %s", month)
	}
	return entry, nil
}
