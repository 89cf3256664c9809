// Package api exposes the retrieval engine over HTTP.
//
// Endpoints:
//
//	GET  /health          liveness probe
//	GET  /ready           readiness probe, pings the database pool
//	POST /api/v1/search   hybrid, vector, or keyword retrieval
//	GET  /api/v1/stats    corpus counts
//
// The health probes sit outside the middleware stack so a rate-limited or
// misbehaving client can never make an orchestrator think the instance is
// down.
//
// File structure:
//   - server.go: route assembly and server lifecycle
//   - middleware.go: recovery, request ID, logging, CORS
//   - ratelimit.go: per-IP token bucket
//   - search.go: the search endpoint
//   - stats.go: the stats endpoint
//   - health.go: liveness and readiness probes
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rankfuse/rankfuse/internal/embed"
	"github.com/rankfuse/rankfuse/internal/log"
)

const (
	// DefaultAddr is the default listen address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout = 60 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// defaultRateBurst is the per-IP token bucket size when the config leaves
// RateBurst unset.
const defaultRateBurst = 60

// ServerConfig contains the dependencies and settings for the API server.
type ServerConfig struct {
	Logger      log.Logger
	Engine      Searcher       // Required
	Embedder    embed.Embedder // Required
	Store       StatsProvider  // Required
	Pool        *pgxpool.Pool  // Optional: nil makes /ready report 503
	CORSOrigins []string       // Origins allowed to call the API from a browser
	TrustProxy  bool           // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int            // Per-IP rate limiter burst (0 = default 60)
}

// Server is the HTTP server for the retrieval API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates an API server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("search engine is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("chunk store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sh := &searchHandler{engine: cfg.Engine, embedder: cfg.Embedder, logger: logger}
	st := &statsHandler{store: cfg.Store, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", sh.search)
	mux.HandleFunc("GET /api/v1/stats", st.getStats)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	rl := newRateLimiter(1.0, burst)

	// Build the middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> CORS -> RateLimit -> Routes
	// RequestID precedes Logging so request_id is available in log attributes.
	// CORS precedes RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// A top-level mux keeps the health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails. Cancellation triggers graceful shutdown bounded by
// ShutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
