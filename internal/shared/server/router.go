package server

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"feedback-backend/internal/analyses"
	"feedback-backend/internal/feedbacks"
	"feedback-backend/internal/orchestrate"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/server/middleware"
)

// Handlers groups the route registrars the engine mounts.
type Handlers struct {
	Feedbacks   *feedbacks.Handler
	Analyses    *analyses.Handler
	Orchestrate *orchestrate.Handler
}

// NewEngine builds the gin engine with middleware and routes registered.
func NewEngine(cfg config.Config, database *sql.DB, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	engine.GET("/health", healthHandler(database))
	engine.GET("/metrics", metrics.Handler())

	api := engine.Group("/api/v1")
	h.Feedbacks.RegisterRoutes(api)

	// Analysis and trigger endpoints fan out to paid inference and
	// workflow APIs; cap per-client throughput ahead of the
	// provider-side limiter.
	analysisLimiter := middleware.NewRateLimiter(middleware.RateLimitRule{
		Rate:  rate.Limit(cfg.AIRequestsPerSec),
		Burst: int(cfg.AIRequestsPerSec) + 1,
	})
	analysisGroup := api.Group("")
	analysisGroup.Use(middleware.RateLimit(analysisLimiter))
	h.Analyses.RegisterRoutes(analysisGroup)

	h.Orchestrate.RegisterRoutes(api.Group("/orchestrate"), middleware.RateLimit(analysisLimiter))

	return engine
}

func healthHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "disabled"
		if database != nil {
			dbStatus = "ok"
			if err := database.PingContext(c.Request.Context()); err != nil {
				dbStatus = "unreachable"
			}
		}
		status := http.StatusOK
		if dbStatus == "unreachable" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status":   "ok",
			"database": dbStatus,
		})
	}
}

// Addr returns a normalized listen address for the given port.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
