package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/exprora/internal/api"
	"github.com/huangsam/exprora/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd runs the SDK and admin HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SDK and admin HTTP API",
	Long: `Serve the /api/v1 endpoints used by the browser SDK and by admin tooling.

Every request is authenticated with the X-API-Key header and rate limited per key.
Prometheus metrics are exposed on /metrics and a liveness probe on /health.

Examples:
  # Serve on the default port with the SQLite store
  exprora serve

  # Deterministic hash bucketing and OTLP tracing
  exprora serve --allocation-mode hash --hash-salt s3cret --trace-exporter otlp --otlp-endpoint localhost:4317`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
			ServiceName:    "exprora",
			ServiceVersion: version,
			Exporter:       cfg.TraceExporter,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			OTLPInsecure:   cfg.OTLPInsecure,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()

		if cfg.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		log.Info("starting server",
			zap.String("version", version),
			zap.String("backend", string(cfg.Backend)),
			zap.String("allocation_mode", string(cfg.AllocationMode)),
			zap.Float64("rate_limit", cfg.RateLimit),
		)

		handler := api.NewHandler(newEngine(log), log)
		srv := api.NewHTTPServer(api.Config{
			Addr:        cfg.Listen,
			RateLimit:   cfg.RateLimit,
			RateBurst:   cfg.RateBurst,
			ServiceName: "exprora",
		}, handler)
		return api.Serve(ctx, srv, log)
	},
}
