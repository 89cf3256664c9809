// Package cmd implements the rankfuse command line interface.
//
// Every command loads configuration, wires the application container via
// internal/app, and tears it down on exit. main.go stays a minimal shim
// around Execute, following the layout of kubectl, hugo and friends.
package cmd

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rankfuse",
		Short: "Hybrid retrieval over PostgreSQL and pgvector",
		Long: `rankfuse stores text chunks in PostgreSQL and answers queries by fusing
a cosine-similarity ranking (pgvector) and a full-text ranking (tsvector)
with Reciprocal Rank Fusion.

Ingest documents, then query them from the command line or over HTTP:

  rankfuse ingest ./docs
  rankfuse search "how do I rotate credentials"
  rankfuse serve --addr 127.0.0.1:8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newSearchCmd(),
		newStatsCmd(),
		newVersionCmd(),
	)

	return root
}

// Execute is the entry point called from main. It builds the command tree
// and runs it; errors surface to main for exit-code handling.
func Execute() error {
	return newRootCmd().Execute()
}
