// Package cmd provides the Argus command-line interface.
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

// defaultTimeout bounds every CLI operation.
const defaultTimeout = 10 * time.Minute

// NewRootCmd creates the argus root command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "argus",
		Short: "Assess SIGMA detection rules for novelty and coverage",
		Long: `Argus assesses proposed SIGMA detection rules against a stored corpus.

It canonicalizes rules into a deterministic form, deduplicates by exact hash,
scores structural and semantic similarity against logsource-gated candidates,
and classifies how well existing rules cover observed behaviors.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	rootCmd.AddCommand(newAssessCmd())
	rootCmd.AddCommand(newMatchCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newReindexCmd())
	rootCmd.AddCommand(newFingerprintCmd())

	return rootCmd
}

// startSpinner shows a progress spinner for long operations unless output is
// machine-readable or suppressed. The returned stop function is always safe
// to call.
func startSpinner(message string) func() {
	if quiet || outputJSON {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Start()
	return s.Stop
}

// validateFilePath rejects paths containing traversal sequences before they
// reach the filesystem.
func validateFilePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path traversal detected: '..' not allowed in %q", path)
	}
	return nil
}
