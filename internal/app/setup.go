package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rankfuse/rankfuse/db"
	"github.com/rankfuse/rankfuse/internal/config"
	"github.com/rankfuse/rankfuse/internal/database"
	"github.com/rankfuse/rankfuse/internal/embed"
	"github.com/rankfuse/rankfuse/internal/ingest"
	"github.com/rankfuse/rankfuse/internal/log"
	"github.com/rankfuse/rankfuse/internal/observability"
	"github.com/rankfuse/rankfuse/internal/search"
	"github.com/rankfuse/rankfuse/internal/store"
)

// Setup creates and initializes the application. Returns an App with
// embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}

	logger := provideLogger(cfg)
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	otelShutdown, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = otelShutdown

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	st, err := store.New(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	a.Store = st

	embedder, err := provideEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	engine, err := search.New(st, cfg.EmbeddingDimension, logger)
	if err != nil {
		return nil, fmt.Errorf("creating search engine: %w", err)
	}
	a.Engine = engine

	ingester, err := ingest.New(st, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingester: %w", err)
	}
	a.Ingester = ingester

	return a, nil
}

// provideLogger builds the process logger from config and installs it as the
// slog default, so package-level logging aligns with injected loggers.
func provideLogger(cfg *config.Config) log.Logger {
	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)
	return logger
}

// provideDBPool applies pending migrations, then opens the connection pool.
// Migrations run first so the pool only ever sees the current schema.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// provideEmbedder builds the configured embedding provider.
func provideEmbedder(ctx context.Context, cfg *config.Config, logger log.Logger) (embed.Embedder, error) {
	embedCfg := embed.Config{
		Provider:  cfg.Provider,
		Model:     cfg.EmbedderModel,
		Dimension: cfg.EmbeddingDimension,
		BaseURL:   cfg.OpenAIBaseURL,
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		embedCfg.APIKey = cfg.OpenAIAPIKey
	default:
		embedCfg.APIKey = cfg.GeminiAPIKey
	}

	embedder, err := embed.New(ctx, embedCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}
