package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/shared/server/respond"
	"feedback-backend/internal/shared/telemetry"
)

// Recovery turns handler panics into a 500 error response instead of a
// dropped connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("panic_recovered", map[string]any{
					"request_id": RequestIDFromContext(c),
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"error":      rec,
					"stack":      string(debug.Stack()),
				})
				respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
				c.Abort()
			}
		}()
		c.Next()
	}
}
