package search

import "errors"

var (
	// ErrDimensionMismatch indicates the query embedding length does not match
	// the dimension the chunks table was provisioned with. Embeddings are never
	// truncated or padded; the caller supplied a vector from the wrong model.
	// Detected before any storage round-trip.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStorageUnavailable indicates a ranker or hydration query failed.
	// The underlying driver error is wrapped; the engine never retries.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidMode indicates an unrecognized search mode.
	ErrInvalidMode = errors.New("invalid search mode")
)
