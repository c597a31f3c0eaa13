package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-reporting-api/pkg/config"
	"github.com/noah-isme/faculty-reporting-api/pkg/database"
)

// Deadline bounds every request context with the configured query timeout,
// so no database call issued while serving the request can block past it.
// An expired deadline surfaces as the retryable database-unavailable error.
func Deadline(cfg config.DatabaseConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := database.WithTimeout(c.Request.Context(), cfg)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
