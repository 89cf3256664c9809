package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rankfuse/rankfuse/internal/log"
)

const (
	// DefaultOpenAIBaseURL targets the hosted API. Point BaseURL at a local
	// server's compatibility endpoint (e.g. http://localhost:11434/v1 for
	// Ollama) to run without the hosted service.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel supports the dimensions parameter, so it can emit
	// vectors at the configured width.
	DefaultOpenAIModel = "text-embedding-3-small"

	openAIRequestsPerSecond = 5
	openAIRequestTimeout    = 30 * time.Second
)

// OpenAI embeds text through any OpenAI-compatible /embeddings endpoint.
//
// The request carries a dimensions field so dimension-aware models
// (text-embedding-3-*) downsize to the configured width; servers that
// ignore the field (Ollama) must serve a model whose native width already
// matches, which the response check enforces.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	limiter    *rate.Limiter
	logger     log.Logger
}

// NewOpenAI creates an OpenAI-compatible Embedder. An API key is required
// for the hosted endpoint; custom base URLs may omit it, since local
// servers don't authenticate.
func NewOpenAI(cfg Config, logger log.Logger) (*OpenAI, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if cfg.APIKey == "" && baseURL == DefaultOpenAIBaseURL {
		return nil, fmt.Errorf("openai: API key is required (set OPENAI_API_KEY)")
	}
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAI{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: openAIRequestTimeout},
		cache:      NewCache(cfg.CacheSize),
		limiter:    rate.NewLimiter(openAIRequestsPerSecond, 1),
		logger:     logger,
	}, nil
}

// Embed returns the embedding for one text, served from cache when the
// identical text was embedded before.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if vec, ok := o.cache.Get(ComputeHash(text)); ok {
		return vec, nil
	}

	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds up to MaxBatchSize texts in a single API call.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	vectors, err := retryWithBackoff(ctx, defaultRetryConfig(), func() ([][]float32, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return o.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", ErrProviderFailed, err)
	}

	for i, vec := range vectors {
		if len(vec) != o.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d (model %q cannot emit the configured width)",
				ErrDimensionMismatch, len(vec), o.dimension, o.model)
		}
		o.cache.Set(ComputeHash(texts[i]), vec)
	}

	o.logger.Debug("embedded batch", "provider", ProviderOpenAI, "texts", len(texts))
	return vectors, nil
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (o *OpenAI) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingsRequest{
		Model:      o.model,
		Input:      texts,
		Dimensions: o.dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embeddings API: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embeddings API status %d: %s", resp.StatusCode, string(detail))
	}

	var apiResp embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(apiResp.Data), len(texts))
	}

	// The API documents data as input-ordered, but Index is authoritative.
	vectors := make([][]float32, len(texts))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
	}
	return vectors, nil
}

// Dimension returns the configured vector width.
func (o *OpenAI) Dimension() int { return o.dimension }

// Model returns the model name in use.
func (o *OpenAI) Model() string { return o.model }

// Close drops idle connections.
func (o *OpenAI) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
