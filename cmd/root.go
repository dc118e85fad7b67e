package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mioportal",
		Short:         "Fetch IIJmio member data from the terminal",
		Long:          "mioportal logs in to the IIJmio member portal with your credentials, fetches data balances, billing, and SIM status, and keeps a local snapshot for widgets and scripts.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newFetchCmd(app),
		newBillCmd(app),
		newUsageCmd(app),
		newCredentialCmd(app),
		newHistoryCmd(app),
	)

	return rootCmd
}
