package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rankfuse/rankfuse/internal/app"
	"github.com/rankfuse/rankfuse/internal/config"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest a file or directory into the corpus",
		Long: `Ingest a file or directory.

Supported extensions: .txt, .md, .markdown. Each file is split into
paragraph-aligned chunks, embedded, and stored. Re-ingesting a file
replaces all of its previous chunks atomically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0])
		},
	}
}

func runIngest(cmd *cobra.Command, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	results, err := a.Ingester.IngestPath(ctx, path)
	if err != nil {
		return fmt.Errorf("ingesting %q: %w", path, err)
	}

	out := cmd.OutOrStdout()
	total, failed := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "  %s: error: %v\n", r.Path, r.Err)
			continue
		}
		total += r.Chunks
		fmt.Fprintf(out, "  %s: %d chunks\n", r.Path, r.Chunks)
	}
	fmt.Fprintf(out, "\nIngested %d chunks from %d files", total, len(results)-failed)
	if failed > 0 {
		fmt.Fprintf(out, " (%d failed)", failed)
	}
	fmt.Fprintln(out)

	if failed == len(results) && failed > 0 {
		return fmt.Errorf("all %d files failed to ingest", failed)
	}
	return nil
}
