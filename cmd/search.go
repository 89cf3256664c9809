package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rankfuse/rankfuse/internal/app"
	"github.com/rankfuse/rankfuse/internal/config"
	"github.com/rankfuse/rankfuse/internal/search"
)

// snippetLength bounds the content preview per result.
const snippetLength = 200

func newSearchCmd() *cobra.Command {
	var (
		mode  string
		limit int
		rrfK  int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot query against the corpus",
		Long: `Run a one-shot query and print ranked results.

Modes:
  hybrid   vector + keyword rankings fused with RRF (default)
  vector   cosine similarity only, scored by raw similarity
  keyword  full-text rank only, scored by raw ts_rank_cd

Hybrid scores are reciprocal-rank sums bounded by 2/(k+1); they are
ordinal, not percentages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], mode, limit, rrfK)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: hybrid, vector or keyword")
	cmd.Flags().IntVar(&limit, "limit", config.DefaultSearchLimit, "maximum number of results")
	cmd.Flags().IntVar(&rrfK, "k", config.DefaultRRFK, "RRF dampening constant (hybrid mode)")

	return cmd
}

func runSearch(cmd *cobra.Command, query, modeFlag string, limit, rrfK int) error {
	searchMode, err := search.ParseMode(modeFlag)
	if err != nil {
		return err
	}

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

	// Keyword mode never touches the embedding provider.
	var embedding []float32
	if searchMode != search.ModeKeyword {
		embedding, err = a.Embedder.Embed(ctx, query)
		if err != nil {
			return fmt.Errorf("embedding query: %w", err)
		}
	}

	resp, err := a.Engine.Search(ctx, search.Request{
		Query:     query,
		Embedding: embedding,
		Mode:      searchMode,
		Limit:     limit,
		RRFK:      rrfK,
	})
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	printResults(cmd, resp)
	return nil
}

func printResults(cmd *cobra.Command, resp *search.Response) {
	out := cmd.OutOrStdout()

	if len(resp.Results) == 0 {
		fmt.Fprintf(out, "No results (%s).\n", resp.Mode)
		return
	}

	fmt.Fprintf(out, "%d results (%s):\n\n", len(resp.Results), resp.Mode)
	for i, r := range resp.Results {
		fmt.Fprintf(out, "%d. [%.4f] %s\n", i+1, r.Score, r.Source)
		fmt.Fprintf(out, "   %s\n\n", snippet(r.Content))
	}
}

// snippet collapses whitespace and truncates content for terminal display.
func snippet(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	if len(collapsed) <= snippetLength {
		return collapsed
	}
	cut := collapsed[:snippetLength]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
