package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"deck-backend/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	RunIDKey            = "runId"
	CheckpointIDKey     = "checkpointId"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		fields := map[string]any{
			"request_id":  reqID,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		for _, key := range []string{RunIDKey, CheckpointIDKey, StatusTransitionKey} {
			if v := c.GetString(key); v != "" {
				fields[snakeCase(key)] = v
			}
		}
		telemetry.Info("request.complete", fields)
	}
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
