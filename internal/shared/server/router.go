package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"deck-backend/internal/capability"
	"deck-backend/internal/checkpoint"
	"deck-backend/internal/preview"
	"deck-backend/internal/runs"
	"deck-backend/internal/services/health"
	"deck-backend/internal/shared/config"
	"deck-backend/internal/shared/metrics"
	"deck-backend/internal/shared/server/middleware"
	"deck-backend/internal/shared/server/respond"
)

const (
	rateGroupRender  = "RENDER"
	rateGroupPolling = "POLLING"
)

// RouterDeps are the handlers the API router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config            config.Config
	Capabilities      capability.Set
	PreviewHandler    *preview.Handler
	CheckpointHandler *checkpoint.Handler
	RunsHandler       *runs.Handler
	Health            *health.Service
	RateLimiter       *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(deps.Capabilities, nil)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		GroupFor: rateGroupFor,
		Limiter:  deps.RateLimiter,
		Rules: map[string]middleware.RateLimitRule{
			rateGroupRender:  {Rate: 0.5, Burst: 5},
			rateGroupPolling: {Rate: 5, Burst: 20},
		},
	}))

	if deps.PreviewHandler != nil {
		deps.PreviewHandler.RegisterRoutes(api)
	}
	if deps.CheckpointHandler != nil {
		deps.CheckpointHandler.RegisterRoutes(api)
	}
	if deps.RunsHandler != nil {
		deps.RunsHandler.RegisterRoutes(api)
	}

	return r
}

// rateGroupFor puts the render-heavy endpoints in their own bucket.
func rateGroupFor(c *gin.Context) string {
	switch c.Request.Method {
	case http.MethodPost:
		switch c.FullPath() {
		case "/api/v1/previews", "/api/v1/runs":
			return rateGroupRender
		}
	case http.MethodGet:
		return rateGroupPolling
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
