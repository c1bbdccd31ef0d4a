// Package api implements the HTTP surface of the crawl service: job
// management endpoints, the live SSE event stream, health, and metrics.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/docspasta/internal/api/middleware"
	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/job"
	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
)

// Config wires the router.
type Config struct {
	Jobs    *job.Service
	Events  *events.Log
	Store   kv.Store
	Logger  logger.Interface
	Version string

	// Gatherer backs /metrics; nil falls back to the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine with the full middleware stack and routes.
func NewRouter(cfg Config) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logging(cfg.Logger),
		middleware.Recovery(cfg.Logger),
	)

	jobs := NewJobsHandler(cfg.Jobs, cfg.Events, cfg.Logger)
	stream := NewStreamHandler(cfg.Jobs, cfg.Events, cfg.Logger)
	health := NewHealthHandler(cfg.Store, cfg.Version)

	engine.POST("/jobs", jobs.Create)
	engine.GET("/jobs", jobs.List)
	engine.GET("/jobs/:id/state", jobs.State)
	engine.GET("/jobs/:id/download", jobs.Download)
	engine.POST("/jobs/:id/cancel", jobs.Cancel)
	engine.GET("/jobs/:id/stream", stream.Stream)

	engine.GET("/health", health.Check)
	engine.HEAD("/health", health.Check)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return engine
}
