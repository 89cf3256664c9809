package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/rankfuse/rankfuse/internal/log"
)

// DefaultGeminiModel outputs 768-dimensional vectors, matching the width
// the bundled migration provisions.
const DefaultGeminiModel = "text-embedding-004"

// geminiRequestsPerSecond is a client-side ceiling on API calls. Well below
// the published quota; it exists to keep bulk ingestion polite.
const geminiRequestsPerSecond = 5

// Gemini embeds text through the Gemini API. Output dimensionality is
// forced to the configured dimension, so any text-embedding model works as
// long as it can emit vectors that wide.
type Gemini struct {
	client    *genai.Client
	model     string
	dimension int
	cache     *Cache
	limiter   *rate.Limiter
	logger    log.Logger
}

// NewGemini creates a Gemini-backed Embedder.
func NewGemini(ctx context.Context, cfg Config, logger log.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required (set GEMINI_API_KEY)")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &Gemini{
		client:    client,
		model:     model,
		dimension: cfg.Dimension,
		cache:     NewCache(cfg.CacheSize),
		limiter:   rate.NewLimiter(geminiRequestsPerSecond, 1),
		logger:    logger,
	}, nil
}

// Embed returns the embedding for one text, served from cache when the
// identical text was embedded before.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if vec, ok := g.cache.Get(ComputeHash(text)); ok {
		return vec, nil
	}

	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds up to MaxBatchSize texts in a single API call.
func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dim := int32(g.dimension)
	embedCfg := &genai.EmbedContentConfig{OutputDimensionality: &dim}

	resp, err := retryWithBackoff(ctx, defaultRetryConfig(), func() (*genai.EmbedContentResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return g.client.Models.EmbedContent(ctx, g.model, contents, embedCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", ErrProviderFailed, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: gemini returned %d embeddings for %d texts",
			ErrProviderFailed, len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: gemini returned empty embedding at index %d", ErrProviderFailed, i)
		}
		if len(emb.Values) != g.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb.Values), g.dimension)
		}
		out[i] = emb.Values
		g.cache.Set(ComputeHash(texts[i]), emb.Values)
	}

	g.logger.Debug("embedded batch", "provider", ProviderGemini, "texts", len(texts))
	return out, nil
}

// Dimension returns the configured vector width.
func (g *Gemini) Dimension() int { return g.dimension }

// Model returns the model name in use.
func (g *Gemini) Model() string { return g.model }

// Close is a no-op; the genai client holds no long-lived connections that
// need explicit teardown.
func (g *Gemini) Close() error { return nil }
