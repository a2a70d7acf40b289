package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"deck-backend/internal/shared/server/respond"
	"deck-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 with the standard error body. The
// log line carries the run or checkpoint the request was about, when known.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"route":      c.FullPath(),
			}
			for _, key := range []string{RunIDKey, CheckpointIDKey} {
				if v := c.GetString(key); v != "" {
					fields[snakeCase(key)] = v
				}
			}
			telemetry.Error("http.panic", fields)
			if !c.Writer.Written() {
				respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
			}
			c.Abort()
		}()
		c.Next()
	}
}
