// Package embed turns text into fixed-width embedding vectors.
//
// Two providers are supported: Gemini (google.golang.org/genai) and any
// OpenAI-compatible /v1/embeddings endpoint, which covers both api.openai.com
// and local servers like Ollama. Both share an LRU cache keyed by content
// hash, exponential-backoff retries, and a client-side rate limiter.
//
// The configured dimension is a hard contract: every vector a provider
// returns is checked against it, because the chunks table is provisioned
// with a fixed vector width and pgvector rejects anything else at insert.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rankfuse/rankfuse/internal/log"
)

var (
	// ErrEmptyText indicates a blank input; there is nothing to embed.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrBatchTooLarge indicates a batch above MaxBatchSize.
	ErrBatchTooLarge = errors.New("batch size exceeds limit")

	// ErrProviderFailed indicates the provider API call failed after retries.
	ErrProviderFailed = errors.New("embedding provider failed")

	// ErrDimensionMismatch indicates the provider returned vectors of a
	// different width than the store is provisioned for.
	ErrDimensionMismatch = errors.New("provider dimension mismatch")

	// ErrUnknownProvider indicates an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

// Provider identifiers accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

const (
	// MaxBatchSize caps one EmbedBatch call. Both provider APIs accept at
	// most 100 inputs per request; the ingester batches at the same size.
	MaxBatchSize = 100

	// DefaultCacheSize is the LRU capacity when Config.CacheSize is zero.
	DefaultCacheSize = 10000
)

// Embedder generates embedding vectors. Implementations are safe for
// concurrent use.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one embedding per input text, in input order.
	// At most MaxBatchSize texts per call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the width of every vector this embedder produces.
	Dimension() int
	// Model is the provider model name, for logging and stats.
	Model() string
	// Close releases provider resources.
	Close() error
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider  string // ProviderGemini or ProviderOpenAI
	Model     string // provider default when empty
	Dimension int    // required; must match the chunks table vector width
	APIKey    string
	BaseURL   string // OpenAI-compatible endpoint root; ignored by gemini
	CacheSize int    // LRU entries; 0 means DefaultCacheSize
}

// New creates the configured provider.
func New(ctx context.Context, cfg Config, logger log.Logger) (Embedder, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}
	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(ctx, cfg, logger)
	case ProviderOpenAI:
		return NewOpenAI(cfg, logger)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}

// ComputeHash returns the cache key for a text: hex-encoded sha256.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateBatch rejects batches the providers would mangle.
func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrEmptyText)
	}
	if len(texts) > MaxBatchSize {
		return fmt.Errorf("%w: %d texts, max %d", ErrBatchTooLarge, len(texts), MaxBatchSize)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: text at index %d", ErrEmptyText, i)
		}
	}
	return nil
}
