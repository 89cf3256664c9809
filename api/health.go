package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rankfuse/rankfuse/internal/log"
)

// health is the liveness probe for Docker/Kubernetes.
// Returns 200 with {"status":"ok"} whenever the process is serving.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness is the readiness probe. It pings the database pool so a lost
// PostgreSQL connection takes the instance out of rotation instead of
// failing queries one by one.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "database pool not configured", logger)
			return
		}
		if err := pool.Ping(r.Context()); err != nil {
			logger.Error("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready", "database not ready", logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
	}
}
