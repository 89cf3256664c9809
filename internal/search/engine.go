// Package search implements hybrid retrieval: a vector ranker and a lexical
// ranker run against the chunk store, and Reciprocal Rank Fusion merges their
// rankings into one result list.
//
// The engine never talks to an embedding provider — callers supply the query
// embedding. That keeps the core synchronous, deterministic, and testable
// against a plain storage fake.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rankfuse/rankfuse/internal/log"
	"github.com/rankfuse/rankfuse/internal/store"
)

// Mode selects which rankers contribute to a query.
type Mode string

const (
	// ModeHybrid runs both rankers and fuses their rankings with RRF.
	ModeHybrid Mode = "hybrid"
	// ModeVector runs the cosine-similarity ranker alone; scores are raw
	// similarities in [0, 1] (1 - cosine distance).
	ModeVector Mode = "vector"
	// ModeKeyword runs the full-text ranker alone; scores are raw ts_rank_cd.
	ModeKeyword Mode = "keyword"
)

// ParseMode maps user input ("hybrid", "vector", "keyword", case-insensitive)
// to a Mode. Empty input means ModeHybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHybrid:
		return ModeHybrid, nil
	case ModeVector:
		return ModeVector, nil
	case ModeKeyword:
		return ModeKeyword, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

const (
	// DefaultLimit is the result count when the request leaves Limit zero.
	DefaultLimit = 5
	// MaxLimit caps the per-query result count.
	MaxLimit = 100

	// overFetchFactor widens each ranker's cut in hybrid mode. A chunk ranked
	// just below the limit by both rankers can still fuse into the top N, so
	// truncating the inputs at N would lose it.
	overFetchFactor = 2
)

// Storage is the slice of the chunk store the engine depends on.
// *store.Store satisfies it.
type Storage interface {
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]store.Candidate, error)
	KeywordSearch(ctx context.Context, query string, limit int) ([]store.Candidate, error)
	ChunksByIDs(ctx context.Context, ids []int64) ([]store.Chunk, error)
}

// Request is one search invocation.
type Request struct {
	// Query is the raw query text for the lexical ranker.
	Query string
	// Embedding is the query embedding for the vector ranker. The caller
	// obtains it; its length must match the store's configured dimension.
	Embedding []float32
	// Mode defaults to ModeHybrid when empty.
	Mode Mode
	// Limit is the maximum number of results. Zero means DefaultLimit;
	// values above MaxLimit are clamped.
	Limit int
	// RRFK is the fusion dampening constant. Zero means DefaultRRFK.
	// Ignored outside hybrid mode.
	RRFK int
}

// Result is one scored chunk, hydrated with its stored row.
type Result struct {
	ChunkID  int64          `json:"chunk_id"`
	Source   string         `json:"source"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Response carries the ranked results and the mode that actually executed.
// Mode matters to callers because hybrid scores are RRF sums (bounded by
// 2/(k+1)) while degenerate modes return ranker-native scores.
type Response struct {
	Mode    Mode
	Results []Result
}

// Engine orchestrates the rankers and owns fusion and hydration.
//
// Engine is safe for concurrent use; queries are read-only and share no
// mutable state.
type Engine struct {
	storage   Storage
	dimension int
	logger    log.Logger
	tracer    trace.Tracer
}

// New creates a search Engine. dimension is the embedding width the chunks
// table was provisioned with; requests carrying embeddings of any other
// length are rejected before touching storage.
func New(storage Storage, dimension int, logger log.Logger) (*Engine, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		storage:   storage,
		dimension: dimension,
		logger:    logger,
		tracer:    otel.Tracer("rankfuse/search"),
	}, nil
}

// Search executes one query.
//
// Empty input degrades instead of failing: a hybrid request with a blank
// query runs vector-only, one with no embedding runs keyword-only, and one
// with neither returns an empty response with a nil error. A non-empty
// embedding of the wrong length is a caller bug and fails with
// ErrDimensionMismatch before any storage call. Storage failures come back
// wrapped in ErrStorageUnavailable; the engine never retries them.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	req = req.normalized()
	if err := e.validate(req); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "search",
		trace.WithAttributes(
			attribute.String("search.mode", string(req.Mode)),
			attribute.Int("search.limit", req.Limit),
		))
	defer span.End()

	mode, ok := effectiveMode(req)
	if !ok {
		return &Response{Mode: mode, Results: []Result{}}, nil
	}
	if mode != req.Mode {
		e.logger.Debug("degrading search mode",
			"requested", req.Mode,
			"effective", mode)
	}

	start := time.Now()

	var (
		results []Result
		err     error
	)
	switch mode {
	case ModeHybrid:
		results, err = e.hybrid(ctx, req)
	case ModeVector:
		results, err = e.single(ctx, mode, req)
	case ModeKeyword:
		results, err = e.single(ctx, mode, req)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	e.logger.Debug("search complete",
		"mode", mode,
		"results", len(results),
		"duration", time.Since(start))

	return &Response{Mode: mode, Results: results}, nil
}

// normalized fills zero-value request fields with their defaults.
func (req Request) normalized() Request {
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.RRFK <= 0 {
		req.RRFK = DefaultRRFK
	}
	return req
}

// validate rejects malformed requests before any storage round-trip.
// Embeddings are never truncated or padded to fit.
func (e *Engine) validate(req Request) error {
	switch req.Mode {
	case ModeHybrid, ModeVector, ModeKeyword:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	if n := len(req.Embedding); n > 0 && n != e.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, n, e.dimension)
	}
	return nil
}

// effectiveMode resolves empty-input degradation. The second return is false
// when no ranker has anything to work with.
func effectiveMode(req Request) (Mode, bool) {
	hasQuery := strings.TrimSpace(req.Query) != ""
	hasEmbedding := len(req.Embedding) > 0

	switch req.Mode {
	case ModeVector:
		if hasEmbedding {
			return ModeVector, true
		}
	case ModeKeyword:
		if hasQuery {
			return ModeKeyword, true
		}
	default:
		switch {
		case hasEmbedding && hasQuery:
			return ModeHybrid, true
		case hasEmbedding:
			return ModeVector, true
		case hasQuery:
			return ModeKeyword, true
		}
	}
	return req.Mode, false
}

// hybrid runs both rankers in parallel with over-fetch, fuses, truncates,
// and hydrates. Both rankers observe the same logical snapshot; Postgres
// read-only queries need no coordination beyond the shared context.
func (e *Engine) hybrid(ctx context.Context, req Request) ([]Result, error) {
	fetch := req.Limit * overFetchFactor

	var vec, kw []store.Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if vec, err = e.storage.VectorSearch(gctx, req.Embedding, fetch); err != nil {
			return fmt.Errorf("%w: vector ranker: %w", ErrStorageUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if kw, err = e.storage.KeywordSearch(gctx, req.Query, fetch); err != nil {
			return fmt.Errorf("%w: keyword ranker: %w", ErrStorageUnavailable, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := Fuse(req.RRFK, vec, kw)
	if len(fused) > req.Limit {
		fused = fused[:req.Limit]
	}
	return e.hydrate(ctx, fused)
}

// single runs one ranker and hydrates its candidates. Scores stay native.
func (e *Engine) single(ctx context.Context, mode Mode, req Request) ([]Result, error) {
	var (
		candidates []store.Candidate
		err        error
	)
	if mode == ModeVector {
		candidates, err = e.storage.VectorSearch(ctx, req.Embedding, req.Limit)
	} else {
		candidates, err = e.storage.KeywordSearch(ctx, req.Query, req.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s ranker: %w", ErrStorageUnavailable, mode, err)
	}
	return e.hydrate(ctx, candidates)
}

// hydrate fetches full rows for the ranked candidates, preserving candidate
// order. A chunk deleted between ranking and hydration is skipped rather
// than surfaced as a hole.
func (e *Engine) hydrate(ctx context.Context, candidates []store.Candidate) ([]Result, error) {
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	chunks, err := e.storage.ChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: hydrating results: %w", ErrStorageUnavailable, err)
	}

	byID := make(map[int64]store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		chunk, ok := byID[cand.ID]
		if !ok {
			continue
		}
		results = append(results, Result{
			ChunkID:  chunk.ID,
			Source:   chunk.Source,
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
			Score:    cand.Score,
		})
	}
	return results, nil
}
