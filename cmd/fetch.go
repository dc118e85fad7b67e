package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snaka/mioportal/internal/application"
	"github.com/snaka/mioportal/internal/domain"
)

const (
	fetchModeTop    = "top"
	fetchModeBill   = "bill"
	fetchModeStatus = "status"
	fetchModeAll    = "all"
)

func newFetchCmd(app *app) *cobra.Command {
	var (
		mode      string
		mioID     string
		password  string
		saveCreds bool
		cached    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch member data from the portal",
		Long:  "fetch logs in (reusing the saved session when possible), pulls the requested member data, and prints it as JSON. Mode all also updates the local cache and widget snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cached {
				return runFetchCached(cmd, app)
			}
			return runFetch(cmd, app, mode, manualCredentials(mioID, password), saveCreds)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", fetchModeAll, "What to fetch: top, bill, status, or all")
	cmd.Flags().StringVar(&mioID, "mio-id", envOrDefault(envMioID, ""), "mio ID (default: $MIO_ID)")
	cmd.Flags().StringVar(&password, "password", envOrDefault(envMioPassword, ""), "mio password (default: $MIO_PASSWORD)")
	cmd.Flags().BoolVar(&saveCreds, "save", false, "Save the credentials after a successful fetch")
	cmd.Flags().BoolVar(&cached, "cached", false, "Print the last cached payload without touching the network")

	return cmd
}

// manualCredentials returns nil unless both halves were supplied, so a lone
// environment variable never counts as a credential.
func manualCredentials(mioID, password string) *domain.Credentials {
	creds := domain.Credentials{MioID: mioID, Password: password}
	if !creds.Valid() {
		return nil
	}
	return &creds
}

func runFetchCached(cmd *cobra.Command, app *app) error {
	payload, err := app.cache.Load(cmd.Context())
	if err != nil {
		return err
	}
	if payload == nil {
		return errors.New("no cached payload; run fetch without --cached first")
	}
	return printJSON(cmd, payload)
}

func runFetch(cmd *cobra.Command, app *app, mode string, manual *domain.Credentials, saveCreds bool) error {
	ctx := cmd.Context()

	switch mode {
	case fetchModeTop, fetchModeBill, fetchModeStatus, fetchModeAll:
	default:
		return fmt.Errorf("unknown fetch mode %q", mode)
	}

	if mode == fetchModeAll {
		var result application.RefreshResult
		err := runFetchSpinner(ctx, cmd.ErrOrStderr(), "Fetching member data...", func(ctx context.Context) error {
			var err error
			result, err = app.refresh.Refresh(ctx, application.RefreshOptions{
				Manual:              manual,
				AllowSessionReuse:   true,
				AllowStoredFallback: true,
				PersistManual:       saveCreds,
				Trigger:             domain.TriggerManual,
			})
			return err
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, result.Payload)
	}

	creds, err := resolveCredentials(ctx, app, manual)
	if err != nil {
		return err
	}

	var out any
	err = runFetchSpinner(ctx, cmd.ErrOrStderr(), "Fetching member data...", func(ctx context.Context) error {
		var err error
		switch mode {
		case fetchModeTop:
			out, err = app.client.FetchTop(ctx, creds)
		case fetchModeBill:
			out, err = app.client.FetchBillSummary(ctx, creds)
		case fetchModeStatus:
			out, err = app.client.FetchServiceStatus(ctx, creds)
		}
		return err
	})
	if err != nil {
		return err
	}

	if saveCreds && manual != nil {
		if err := app.credStore.Save(ctx, *manual); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
	}

	return printJSON(cmd, out)
}

// resolveCredentials picks the credentials a single-mode fetch logs in with:
// manual first, then the stored ones, then nil to reuse the current session.
func resolveCredentials(ctx context.Context, app *app, manual *domain.Credentials) (*domain.Credentials, error) {
	if manual != nil {
		return manual, nil
	}

	stored, err := app.credStore.Load(ctx)
	if err == nil {
		return &stored, nil
	}
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return nil, nil
	}
	return nil, err
}

func printJSON(cmd *cobra.Command, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return err
}
