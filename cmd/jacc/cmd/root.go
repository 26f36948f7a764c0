// Package cmd provides the CLI commands for jacc.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgPath string

// NewRootCmd creates the root command for the jacc CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jacc",
		Short: "Document retrieval and answer synthesis for payment-processing support",
		Long: `JACC answers payment-processing support questions from an ingested
document corpus. It combines keyword, vector and AI-enhanced retrieval,
then synthesizes a single cited answer.

Start by ingesting documents, then ask questions:

  jacc ingest ./docs
  jacc search "What are Clearent support hours"`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("jacc version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to jacc.yaml (default: ./jacc.yaml)")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}
