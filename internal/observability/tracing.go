// Package observability provides OpenTelemetry integration for distributed
// tracing.
//
// Traces are exported over OTLP HTTP to a local collector agent (Datadog
// Agent, otel-collector, Grafana Alloy: anything listening for OTLP on
// localhost:4318). Running through a local agent keeps backend credentials
// out of the application: the agent authenticates and forwards.
//
// # Configuration
//
// Config file (~/.rankfuse/config.yaml):
//
//	tracing:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "rankfuse"
//
// Tracing is off by default; a missing or unreachable collector downgrades
// to a no-op instead of failing startup.
package observability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/rankfuse/rankfuse/internal/log"
)

// Config for the OTLP trace pipeline.
type Config struct {
	// Enabled turns trace export on (default: false)
	Enabled bool
	// Endpoint is the OTLP HTTP collector endpoint (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment tag (dev, staging, prod)
	Environment string
	// ServiceName is the service name reported on every span
	ServiceName string
}

// DefaultEndpoint is the conventional local OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// shutdownTimeout bounds the final span flush on exit.
const shutdownTimeout = 5 * time.Second

// Setup installs a global TracerProvider exporting to the configured OTLP
// collector. The returned shutdown function flushes pending spans and is
// always non-nil and safe to call. With tracing disabled, or when the
// exporter cannot be created, both setup and shutdown are no-ops.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.Enabled {
		return noop, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// The SDK's default resource reads these, so the service name and
	// environment appear on every span without hand-building a resource.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		logger.Warn("trace exporter unavailable, tracing disabled",
			"endpoint", endpoint, "error", err)
		return noop, nil
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	// One startup span verifies the pipeline end to end.
	_, span := provider.Tracer("rankfuse-init").Start(ctx, "rankfuse.init")
	span.End()

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return provider.Shutdown(ctx)
	}, nil
}
