package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rankfuse/rankfuse/api"
	"github.com/rankfuse/rankfuse/internal/app"
	"github.com/rankfuse/rankfuse/internal/config"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP retrieval API",
		Long: `Start the HTTP API server.

Runs pending migrations, opens the connection pool, and serves:

  GET  /health          liveness probe
  GET  /ready           readiness probe
  POST /api/v1/search   hybrid, vector, or keyword retrieval
  GET  /api/v1/stats    corpus counts

SIGINT or SIGTERM triggers graceful shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", api.DefaultAddr, "listen address (host:port)")

	return cmd
}

func runServe(addr string) error {
	if err := validateAddr(addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	a.Logger.Info("starting rankfuse", "version", AppVersion, "addr", addr)

	server, err := api.NewServer(api.ServerConfig{
		Logger:      a.Logger,
		Engine:      a.Engine,
		Embedder:    a.Embedder,
		Store:       a.Store,
		Pool:        a.Pool,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	return server.Run(ctx, addr)
}
