// ABOUTME: Version command
// ABOUTME: Prints product, version and manufacturer
package cmd

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-metronome/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// The version needs no configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", version.Product, version.Version, version.Manufacturer)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
