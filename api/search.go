package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rankfuse/rankfuse/internal/embed"
	"github.com/rankfuse/rankfuse/internal/log"
	"github.com/rankfuse/rankfuse/internal/search"
)

// maxQueryLength caps the query text in bytes. Longer inputs are almost
// certainly pasted documents, not queries.
const maxQueryLength = 1000

// maxRequestBody caps the search request body size.
const maxRequestBody = 1024 * 1024 // 1MB

// Searcher is the slice of the search engine the API depends on.
// *search.Engine satisfies it.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// searchHandler serves POST /api/v1/search. It owns the step the engine
// refuses to do: turning query text into an embedding via the provider.
type searchHandler struct {
	engine   Searcher
	embedder embed.Embedder
	logger   log.Logger
}

// searchRequest is the JSON body of a search call.
type searchRequest struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit"`
	SearchType string `json:"search_type"`
	RRFK       int    `json:"rrf_k"`
}

// searchResponse is the JSON body of a successful search.
// SearchType reports the mode that actually executed, which differs from
// the requested mode when empty input degrades a hybrid query.
type searchResponse struct {
	Query      string          `json:"query"`
	SearchType string          `json:"search_type"`
	Results    []search.Result `json:"results"`
	Total      int             `json:"total"`
}

// search handles POST /api/v1/search.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", h.logger)
		return
	}

	if len(req.Query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 bytes or fewer", h.logger)
		return
	}

	mode, err := search.ParseMode(req.SearchType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_mode", "search_type must be hybrid, vector or keyword", h.logger)
		return
	}

	// Keyword mode never needs an embedding; for the other modes a blank
	// query has nothing to embed, and the engine degrades on its own.
	var embedding []float32
	if mode != search.ModeKeyword && strings.TrimSpace(req.Query) != "" {
		embedding, err = h.embedder.Embed(r.Context(), req.Query)
		if err != nil {
			h.logger.Error("embedding query", "error", err, "query_len", len(req.Query))
			writeError(w, http.StatusBadGateway, "embedding_unavailable", "embedding provider failed", h.logger)
			return
		}
	}

	resp, err := h.engine.Search(r.Context(), search.Request{
		Query:     req.Query,
		Embedding: embedding,
		Mode:      mode,
		Limit:     req.Limit,
		RRFK:      req.RRFK,
	})
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:      req.Query,
		SearchType: string(resp.Mode),
		Results:    resp.Results,
		Total:      len(resp.Results),
	}, h.logger)
}

// writeSearchError maps engine errors to HTTP status codes.
//
// A dimension mismatch here is a deployment problem, not a client one: the
// server itself produced the embedding, so the embedder model and the vector
// column width disagree.
func (h *searchHandler) writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, "invalid_mode", "search_type must be hybrid, vector or keyword", h.logger)
	case errors.Is(err, search.ErrDimensionMismatch):
		h.logger.Error("embedding dimension mismatch", "error", err)
		writeError(w, http.StatusInternalServerError, "dimension_mismatch", "embedder output does not match the index dimension", h.logger)
	case errors.Is(err, search.ErrStorageUnavailable):
		h.logger.Error("search storage unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "search backend unavailable", h.logger)
	default:
		h.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "search failed", h.logger)
	}
}
