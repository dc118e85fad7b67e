package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(app *app) *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent refresh attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if clear {
				if err := app.history.Clear(cmd.Context()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return err
			}

			records, err := app.history.Load(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No refresh attempts recorded")
				return err
			}

			for _, record := range records {
				status := "ok"
				if !record.Success {
					status = "failed"
				}
				line := fmt.Sprintf("%s  %-9s  %-6s  %s",
					record.At.Local().Format("2006-01-02 15:04:05"),
					record.Trigger,
					status,
					record.Message,
				)
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Delete the recorded history")

	return cmd
}
