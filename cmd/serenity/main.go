// Package main provides the entry point for the serenity CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nabbelbabbel/serenity/cmd/serenity/commands"
	"github.com/nabbelbabbel/serenity/pkg/version"
)

var quiet bool

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "serenity",
		Short: "Serenity local correlation - pair residual solver",
		Long: `Serenity computes second-order correlation energies over orbital pairs.

Commands:
  run       Run the pair correction on a system file
  validate  Check a system or settings document against its schema
  mcp       Serve the solver tools over MCP stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	// Add commands.
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "serenity %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
