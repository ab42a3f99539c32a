package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command for the appserver binary
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appserver",
		Short: "appserver - configuration driven container runtime",
		Long: `appserver runs containers whose receivers, workers and thread
strategies are chosen by type name in a configuration file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewShowCommand())
	cmd.AddCommand(NewTypesCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion returns the version line
func PrintVersion() string {
	return fmt.Sprintf("appserver v%s (commit: %s, built on: %s)", Version, Commit, Date)
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	}
}
