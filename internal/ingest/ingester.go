package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/rankfuse/rankfuse/internal/embed"
	"github.com/rankfuse/rankfuse/internal/log"
	"github.com/rankfuse/rankfuse/internal/store"
)

// Store is the persistence surface the ingester needs. *store.Store satisfies
// it; tests substitute a mock.
type Store interface {
	// ReplaceSource atomically swaps every chunk of one source for the given
	// set and reports how many chunks were written.
	ReplaceSource(ctx context.Context, source string, chunks []store.NewChunk) (int, error)
}

// supportedExtensions are the file types worth chunking for retrieval.
// Everything else is skipped during directory walks and rejected for single
// files.
var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// ingestWorkers bounds concurrent file processing. Each worker embeds its own
// batches, so this also caps in-flight embedding requests per directory run.
const ingestWorkers = 4

// FileResult reports the outcome for one ingested file.
type FileResult struct {
	Path   string
	Chunks int
	Err    error
}

// Ingester reads files, chunks them, embeds the chunks, and stores them.
type Ingester struct {
	store    Store
	embedder embed.Embedder
	logger   log.Logger
}

// New creates an Ingester.
func New(st Store, embedder embed.Embedder, logger log.Logger) (*Ingester, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{store: st, embedder: embedder, logger: logger}, nil
}

// IngestPath ingests a single file or every supported file under a directory.
// Per-file failures are reported in the results rather than returned: one bad
// file does not abort a directory run. The returned error covers only
// failures that prevent the run from starting at all.
func (ing *Ingester) IngestPath(ctx context.Context, path string) ([]FileResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	if info.IsDir() {
		return ing.ingestDir(ctx, absPath)
	}

	if ext := strings.ToLower(filepath.Ext(absPath)); !supportedExtensions[ext] {
		return nil, fmt.Errorf("unsupported file type %q (want .txt, .md or .markdown)", ext)
	}
	return []FileResult{ing.ingestFile(ctx, absPath)}, nil
}

// ingestDir processes every supported file under dir with a bounded worker
// pool. Results keep the sorted file order regardless of completion order.
func (ing *Ingester) ingestDir(ctx context.Context, dir string) ([]FileResult, error) {
	files, err := ing.collectFiles(dir)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestWorkers)
	for i, file := range files {
		g.Go(func() error {
			results[i] = ing.ingestFile(ctx, file)
			return nil
		})
	}
	// Workers never return errors; per-file failures land in results.
	_ = g.Wait()

	return results, nil
}

// collectFiles walks dir and returns the sorted absolute paths of supported
// files. A .gitignore at the walk root is honored; a missing or malformed one
// is ignored.
func (ing *Ingester) collectFiles(dir string) ([]string, error) {
	var gitIgnore *ignore.GitIgnore
	if matcher, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore")); err == nil {
		gitIgnore = matcher
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if gitIgnore != nil && rel != "." && gitIgnore.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	slices.Sort(files)
	return files, nil
}

// ingestFile processes one file. The absolute path doubles as the chunk
// source key, so re-ingesting the same file replaces its previous chunks.
func (ing *Ingester) ingestFile(ctx context.Context, path string) FileResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path, Err: fmt.Errorf("reading file: %w", err)}
	}

	texts := SplitText(string(content))
	if len(texts) == 0 {
		// Still replace: a file that shrank below the chunk minimum must not
		// leave stale chunks behind.
		if _, err := ing.store.ReplaceSource(ctx, path, nil); err != nil {
			return FileResult{Path: path, Err: fmt.Errorf("clearing source: %w", err)}
		}
		ing.logger.Debug("no usable chunks", "path", path)
		return FileResult{Path: path}
	}

	vectors, err := ing.embedAll(ctx, texts)
	if err != nil {
		return FileResult{Path: path, Err: fmt.Errorf("embedding chunks: %w", err)}
	}

	chunks := make([]store.NewChunk, len(texts))
	for i, text := range texts {
		chunks[i] = store.NewChunk{
			Content:   text,
			Embedding: vectors[i],
			Metadata: map[string]any{
				"chunk_index": i,
				"filename":    filepath.Base(path),
			},
		}
	}

	stored, err := ing.store.ReplaceSource(ctx, path, chunks)
	if err != nil {
		return FileResult{Path: path, Err: fmt.Errorf("storing chunks: %w", err)}
	}

	ing.logger.Info("ingested file", "path", path, "chunks", stored)
	return FileResult{Path: path, Chunks: stored}
}

// embedAll embeds texts in provider-sized batches, preserving order.
func (ing *Ingester) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embed.MaxBatchSize {
		end := min(start+embed.MaxBatchSize, len(texts))
		batch, err := ing.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
