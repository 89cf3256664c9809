package api

import (
	"context"
	"net/http"

	"github.com/rankfuse/rankfuse/internal/log"
	"github.com/rankfuse/rankfuse/internal/store"
)

// StatsProvider is the slice of the chunk store the stats endpoint depends
// on. *store.Store satisfies it.
type StatsProvider interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// statsHandler serves GET /api/v1/stats.
type statsHandler struct {
	store  StatsProvider
	logger log.Logger
}

// getStats returns corpus-level counts for dashboards and smoke checks.
func (h *statsHandler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("reading corpus stats", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "failed to read stats", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"chunks":   stats.Chunks,
		"embedded": stats.Embedded,
		"sources":  stats.Sources,
	}, h.logger)
}
