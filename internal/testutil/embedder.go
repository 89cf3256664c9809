package testutil

import (
	"context"
	"crypto/sha256"
	"slices"
	"sync"

	"github.com/rankfuse/rankfuse/internal/embed"
)

// FakeEmbedder is a deterministic, in-memory embed.Embedder. Vectors are
// derived from a content hash, so equal texts always embed to equal vectors
// and no network or API key is involved.
//
// Safe for concurrent use.
type FakeEmbedder struct {
	dimension int

	mu      sync.Mutex
	batches [][]string
	err     error
}

var _ embed.Embedder = (*FakeEmbedder)(nil)

// NewFakeEmbedder creates a fake embedder producing vectors of the given
// dimension.
func NewFakeEmbedder(dimension int) *FakeEmbedder {
	return &FakeEmbedder{dimension: dimension}
}

// FailWith makes every subsequent embedding call return err. Pass nil to
// restore normal behavior.
func (f *FakeEmbedder) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Embed returns the deterministic vector for text.
func (f *FakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one deterministic vector per input text and records the
// batch for later inspection.
func (f *FakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches = append(f.batches, slices.Clone(texts))
	if f.err != nil {
		return nil, f.err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(text, f.dimension)
	}
	return vectors, nil
}

// Dimension returns the configured vector width.
func (f *FakeEmbedder) Dimension() int { return f.dimension }

// Model identifies the fake in logs and error messages.
func (f *FakeEmbedder) Model() string { return "fake-embedder" }

// Close implements embed.Embedder. It never fails.
func (f *FakeEmbedder) Close() error { return nil }

// Batches returns a copy of every batch passed to EmbedBatch, in call order.
// Single Embed calls appear as one-element batches.
func (f *FakeEmbedder) Batches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]string, len(f.batches))
	for i, batch := range f.batches {
		out[i] = slices.Clone(batch)
	}
	return out
}

// Calls returns how many embedding calls were made.
func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// deterministicVector spreads the SHA-256 digest of text across the requested
// dimension, scaled into [0, 1].
func deterministicVector(text string, dimension int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vector := make([]float32, dimension)
	for i := range vector {
		vector[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return vector
}
