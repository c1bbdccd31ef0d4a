package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/docspasta/internal/kv"
)

// HealthHandler reports service liveness and the state of its dependencies.
type HealthHandler struct {
	store   kv.Store
	version string
	started time.Time
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(store kv.Store, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		version: version,
		started: time.Now().UTC(),
	}
}

// Check handles GET and HEAD /health. A failing store check degrades the
// status and the response code.
func (h *HealthHandler) Check(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	checks := gin.H{"redis": "ok"}

	if err := h.store.Ping(c.Request.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		checks["redis"] = err.Error()
	}

	if c.Request.Method == http.MethodHead {
		c.Status(code)
		return
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": "docspasta",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"checks":  checks,
	})
}
