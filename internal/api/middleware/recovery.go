package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/docspasta/internal/logger"
)

// Recovery converts handler panics into 500 responses instead of dropping
// the connection.
func Recovery(log logger.Interface) gin.HandlerFunc {
	log = log.WithComponent("http")

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panic",
					"panic", r,
					"path", c.Request.URL.Path,
					"request_id", GetRequestID(c),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()

		c.Next()
	}
}
