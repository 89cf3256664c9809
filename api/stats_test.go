package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankfuse/rankfuse/internal/log"
	"github.com/rankfuse/rankfuse/internal/store"
)

// mockStatsProvider implements StatsProvider with a canned result.
type mockStatsProvider struct {
	stats store.Stats
	err   error
}

func (m *mockStatsProvider) Stats(_ context.Context) (store.Stats, error) {
	if m.err != nil {
		return store.Stats{}, m.err
	}
	return m.stats, nil
}

func TestStatsHandler(t *testing.T) {
	h := &statsHandler{
		store:  &mockStatsProvider{stats: store.Stats{Chunks: 42, Embedded: 40, Sources: 7}},
		logger: log.NewNop(),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	h.getStats(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(42), body["chunks"])
	assert.Equal(t, int64(40), body["embedded"])
	assert.Equal(t, int64(7), body["sources"])
}

func TestStatsHandler_StoreError(t *testing.T) {
	h := &statsHandler{
		store:  &mockStatsProvider{err: errors.New("connection refused")},
		logger: log.NewNop(),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	h.getStats(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "stats_failed", decodeErrorBody(t, w).Error)
}
