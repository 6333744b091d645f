// Package commands implements the Herald CLI surface.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	verbose     bool
	dryRun      bool
	interactive bool
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "herald",
	Short: "Automated first response for GitHub issues",
	Long: `Herald triages and answers GitHub issues for a single repository.

The triage pipeline assigns exactly one label from a closed enumeration
to unlabeled open issues. The answer pipeline posts one retrieval-grounded
reply, with citations, to issues that ask a question the documentation
can answer. Both refuse to act rather than act wrongly.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .github/herald.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log the decision instead of writing it")
	rootCmd.PersistentFlags().BoolVar(&interactive, "interactive", false, "require confirmation before each write")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
