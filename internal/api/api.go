// Package api serves the SDK and admin HTTP endpoints over gin. Every /api/v1
// route is scoped to the account behind the X-API-Key header.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/exprora/core"
	"github.com/huangsam/exprora/internal/contract"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Config holds server-specific configuration.
type Config struct {
	Addr        string
	RateLimit   float64 // requests per second per API key, 0 disables
	RateBurst   int
	ServiceName string
}

// Handler holds the dependencies of every route.
type Handler struct {
	engine *core.Engine
	store  contract.Store
	logger *zap.Logger
}

// NewHandler creates a handler over the engine and its store.
func NewHandler(engine *core.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, store: engine.Store(), logger: logger}
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(cfg Config, h *Handler) *gin.Engine {
	registerValidators()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "exprora"
	}

	router := gin.New()
	router.Use(
		RequestID(),
		Recovery(h.logger),
		otelgin.Middleware(serviceName),
		Metrics(),
		AccessLog(h.logger),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	SetupRoutes(router, h, Auth(h.store), RateLimit(cfg.RateLimit, cfg.RateBurst))
	return router
}

// SetupRoutes registers the /api/v1 routes behind the given middleware.
func SetupRoutes(router *gin.Engine, h *Handler, middleware ...gin.HandlerFunc) {
	v1 := router.Group("/api/v1", middleware...)
	{
		v1.POST("/visitor/init", h.VisitorInit)
		v1.GET("/experiments/active", h.ActiveExperiments)
		v1.POST("/events", h.TrackEvent)
		v1.GET("/experiments/:id/results", h.ExperimentResults)

		v1.GET("/experiments", h.ListExperiments)
		v1.POST("/experiments", h.CreateExperiment)
		v1.GET("/experiments/:id", h.GetExperiment)
		v1.PATCH("/experiments/:id", h.UpdateExperiment)
		v1.POST("/experiments/:id/status", h.SetStatus)
		v1.POST("/experiments/:id/variants", h.AddVariant)
	}
}

// NewHTTPServer wraps the router in an http.Server.
func NewHTTPServer(cfg Config, h *Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Serve runs the server until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
