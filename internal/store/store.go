// Package store persists text chunks in PostgreSQL and ranks them two ways:
// cosine similarity over a pgvector embedding column, and full-text rank over
// a generated tsvector column.
//
// The chunks table (see db/migrations) is append-mostly: the only mutation is
// ReplaceSource, which deletes and re-inserts every chunk of one source inside
// a single transaction so readers never observe a half-ingested source.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/rankfuse/rankfuse/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Chunk is one stored row. The embedding column is write-only from Go's point
// of view: ranking happens in SQL and hydration never reads the vector back.
type Chunk struct {
	ID        int64
	Source    string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Candidate is a chunk id scored by a single ranker. Its rank is its 1-based
// position within the slice that carries it; Score is the ranker's native
// score (cosine similarity or ts_rank_cd), kept for single-ranker modes and
// for debugging.
type Candidate struct {
	ID    int64
	Score float64
}

// NewChunk is one chunk staged for insertion by ReplaceSource.
type NewChunk struct {
	Content   string
	Embedding []float32
	Metadata  map[string]any
}

// Stats summarizes the chunks table.
type Stats struct {
	Chunks   int64 // total rows
	Embedded int64 // rows with a non-NULL embedding
	Sources  int64 // distinct source values
}

// vectorSearchSQL orders by raw cosine distance so the HNSW index is used;
// the id tie-break keeps equal-distance rows deterministic.
const vectorSearchSQL = `SELECT id, 1 - (embedding <=> $1) AS score
	FROM chunks
	WHERE embedding IS NOT NULL
	ORDER BY embedding <=> $1, id
	LIMIT $2`

// keywordSearchSQL excludes non-matching rows entirely (no zero-score
// padding); websearch_to_tsquery tolerates raw user input.
const keywordSearchSQL = `SELECT id, ts_rank_cd(content_tsv, websearch_to_tsquery('english', $1)) AS score
	FROM chunks
	WHERE content_tsv @@ websearch_to_tsquery('english', $1)
	ORDER BY score DESC, id
	LIMIT $2`

const chunksByIDsSQL = `SELECT id, source, content, metadata, created_at
	FROM chunks
	WHERE id = ANY($1)`

const insertChunkSQL = `INSERT INTO chunks (source, content, embedding, metadata)
	VALUES ($1, $2, $3, $4)`

const statsSQL = `SELECT count(*), count(embedding), count(DISTINCT source) FROM chunks`

// Store reads and writes the chunks table.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a chunk Store.
func New(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// VectorSearch returns up to limit chunk ids ordered by cosine similarity to
// the query embedding, most similar first. Rows without an embedding never
// match. An empty embedding returns no candidates and no error.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]Candidate, error) {
	if len(embedding) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, vectorSearchSQL, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// KeywordSearch returns up to limit chunk ids ordered by full-text rank
// against the query, best match first. A blank query returns no candidates
// and no error — websearch_to_tsquery('') matches nothing, so the round-trip
// is skipped.
func (s *Store) KeywordSearch(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, keywordSearchSQL, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// ChunksByIDs fetches full rows for the given ids. Row order is unspecified;
// callers that care about order rebuild it on their side. Ids that no longer
// exist are silently absent from the result.
func (s *Store) ChunksByIDs(ctx context.Context, ids []int64) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, chunksByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]Chunk, 0, len(ids))
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Source, &c.Content, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	return chunks, nil
}

// ReplaceSource atomically replaces every chunk of one source: DELETE by
// source, then insert the staged chunks, all in one transaction. Returns the
// number of chunks inserted. Passing no chunks just deletes the source.
func (s *Store) ReplaceSource(ctx context.Context, source string, chunks []NewChunk) (int, error) {
	if strings.TrimSpace(source) == "" {
		return 0, fmt.Errorf("source is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM chunks WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("deleting source %q: %w", source, err)
	}

	for i, c := range chunks {
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		var embedding any // NULL when the chunk has no embedding
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}
		if _, err := tx.Exec(ctx, insertChunkSQL, source, c.Content, embedding, metadata); err != nil {
			return 0, fmt.Errorf("inserting chunk %d of %q: %w", i, source, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing replace of %q: %w", source, err)
	}

	s.logger.Debug("source replaced",
		"source", source,
		"deleted", tag.RowsAffected(),
		"inserted", len(chunks))
	return len(chunks), nil
}

// Stats reports table totals for the stats endpoint and CLI.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.pool.QueryRow(ctx, statsSQL).Scan(&st.Chunks, &st.Embedded, &st.Sources); err != nil {
		return Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return st, nil
}

// scanCandidates drains a (id, score) result set.
func scanCandidates(rows pgx.Rows) ([]Candidate, error) {
	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Score); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading candidates: %w", err)
	}
	return candidates, nil
}
