package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/librarian/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Needs neither config nor logger.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "librarian %s\n", version.String())
	},
}
