package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "biogate",
	Short: "Biometric authentication gateway",
	Long: `BioGate enrolls users by face or voice sample and verifies later samples
against the enrolled reference, issuing an access token on success.`,
	SilenceUsage: true,
}

func main() {
	// Running without a subcommand serves the API.
	rootCmd.AddCommand(serveCmd, migrateCmd)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
