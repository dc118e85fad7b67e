package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snaka/mioportal/internal/domain"
)

func newCredentialCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the stored portal credentials",
	}

	cmd.AddCommand(
		newCredentialSaveCmd(app),
		newCredentialShowCmd(app),
		newCredentialDeleteCmd(app),
	)

	return cmd
}

func newCredentialSaveCmd(app *app) *cobra.Command {
	var mioID, password string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Store credentials in the password store (file fallback)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds := domain.Credentials{MioID: mioID, Password: password}
			if !creds.Valid() {
				return errors.New("both --mio-id and --password are required")
			}
			if err := app.credStore.Save(cmd.Context(), creds); err != nil {
				return fmt.Errorf("save credentials: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved credentials for %s\n", creds.Redacted())
			return err
		},
	}

	cmd.Flags().StringVar(&mioID, "mio-id", envOrDefault(envMioID, ""), "mio ID (default: $MIO_ID)")
	cmd.Flags().StringVar(&password, "password", envOrDefault(envMioPassword, ""), "mio password (default: $MIO_PASSWORD)")

	return cmd
}

func newCredentialShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored credentials with the password masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := app.credStore.Load(cmd.Context())
			if errors.Is(err, domain.ErrCredentialNotFound) {
				return errors.New("no credentials stored")
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), creds.Redacted())
			return err
		},
	}
}

func newCredentialDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the stored credentials from every backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.credStore.Delete(cmd.Context()); err != nil {
				return fmt.Errorf("delete credentials: %w", err)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Credentials deleted")
			return err
		},
	}
}
