package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Atrium admin CLI. Subcommands
// (migrate, tenant, token) are attached here.
var rootCmd = &cobra.Command{
	Use:           "atrium",
	Short:         "Atrium admin CLI",
	Long:          "Administrative utilities for Atrium (migrations, tenant provisioning, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
