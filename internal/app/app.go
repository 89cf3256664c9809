// Package app wires configuration, storage, embedding, and retrieval into a
// single container shared by every entry point (CLI commands and the HTTP
// server).
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rankfuse/rankfuse/internal/config"
	"github.com/rankfuse/rankfuse/internal/embed"
	"github.com/rankfuse/rankfuse/internal/ingest"
	"github.com/rankfuse/rankfuse/internal/log"
	"github.com/rankfuse/rankfuse/internal/search"
	"github.com/rankfuse/rankfuse/internal/store"
)

// App is the core application container.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Pool     *pgxpool.Pool
	Store    *store.Store
	Embedder embed.Embedder
	Engine   *search.Engine
	Ingester *ingest.Ingester

	otelShutdown func(context.Context) error
}

// Close releases resources in reverse initialization order. It is safe to
// call on a partially built App, so Setup can use it for unwinding.
func (a *App) Close() error {
	var errs []error

	if a.Embedder != nil {
		if err := a.Embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedder: %w", err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelShutdown != nil {
		// Traces flush last so the shutdown itself stays observable.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing traces: %w", err))
		}
	}

	return errors.Join(errs...)
}
