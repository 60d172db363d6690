package main

import (
	"github.com/spf13/cobra"

	"codehint/internal/version"
)

var (
	// dirFlag is the workspace holding .codehint/
	dirFlag     string
	verbosity   int
	quietFlag   bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "codehint",
	Short: "codehint - request builder for code-intelligence engines",
	Long: `codehint tracks which parts of open documents an analysis engine has not
seen yet and builds the smallest request that brings it up to date: nothing,
the full document, or just the function around the cursor.

It talks to a remote engine over HTTP or to an in-process engine.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("codehint version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dirFlag, "dir", ".", "Workspace directory containing .codehint/")
	pf.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress all log output")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
}
