package embed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rankfuse/rankfuse/internal/log"
)

// ============================================================
// Hashing
// ============================================================

func TestComputeHash(t *testing.T) {
	h1 := ComputeHash("the same text")
	h2 := ComputeHash("the same text")
	h3 := ComputeHash("different text")

	if h1 != h2 {
		t.Errorf("same text hashed differently: %q vs %q", h1, h2)
	}
	if h1 == h3 {
		t.Error("different texts collided")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}
}

// ============================================================
// Batch validation
// ============================================================

func TestValidateBatch(t *testing.T) {
	tooLarge := make([]string, MaxBatchSize+1)
	for i := range tooLarge {
		tooLarge[i] = "text"
	}

	tests := []struct {
		name    string
		texts   []string
		wantErr error
	}{
		{"valid single", []string{"hello"}, nil},
		{"valid full batch", make100("x"), nil},
		{"empty slice", nil, ErrEmptyText},
		{"blank element", []string{"ok", "   "}, ErrEmptyText},
		{"over limit", tooLarge, ErrBatchTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBatch(tt.texts)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validateBatch() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateBatch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func make100(s string) []string {
	out := make([]string, MaxBatchSize)
	for i := range out {
		out[i] = s
	}
	return out
}

// ============================================================
// Provider selection
// ============================================================

func TestNewProviderDispatch(t *testing.T) {
	ctx := context.Background()
	logger := log.NewNop()

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: "cohere", Dimension: 768}, logger)
		if !errors.Is(err, ErrUnknownProvider) {
			t.Errorf("New() error = %v, want ErrUnknownProvider", err)
		}
	})

	t.Run("non-positive dimension", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: ProviderGemini, Dimension: 0, APIKey: "k"}, logger)
		if err == nil {
			t.Error("New() accepted zero dimension")
		}
	})

	t.Run("gemini requires api key", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: ProviderGemini, Dimension: 768}, logger)
		if err == nil {
			t.Error("New() accepted gemini config without API key")
		}
	})

	t.Run("openai requires key for hosted endpoint", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: ProviderOpenAI, Dimension: 768}, logger)
		if err == nil {
			t.Error("New() accepted hosted openai config without API key")
		}
	})

	t.Run("openai custom base url allows empty key", func(t *testing.T) {
		emb, err := New(ctx, Config{
			Provider:  ProviderOpenAI,
			Dimension: 768,
			BaseURL:   "http://localhost:11434/v1",
		}, logger)
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}
		defer func() {
			_ = emb.Close()
		}()
		if emb.Dimension() != 768 {
			t.Errorf("Dimension() = %d, want 768", emb.Dimension())
		}
		if !strings.Contains(emb.Model(), "text-embedding") {
			t.Errorf("Model() = %q, want a default embedding model", emb.Model())
		}
	})
}
