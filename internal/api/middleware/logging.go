package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/docspasta/internal/logger"
)

// Logging emits one structured log line per request after it completes.
func Logging(log logger.Interface) gin.HandlerFunc {
	log = log.WithComponent("http")

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", GetRequestID(c),
		}

		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
			log.Error("request failed", fields...)

			return
		}

		log.Info("request handled", fields...)
	}
}
