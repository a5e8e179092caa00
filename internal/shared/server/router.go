package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"findoc-backend/internal/jobs"
	"findoc-backend/internal/services/health"
	"findoc-backend/internal/shared/config"
	"findoc-backend/internal/shared/metrics"
	"findoc-backend/internal/shared/server/middleware"
	"findoc-backend/internal/shared/server/respond"
)

const (
	apiMessage = "Financial Document Analyzer API is running"

	groupAnalyze = "ANALYZE"
	groupPolling = "POLLING"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config config.Config
	Jobs   *jobs.Handler
	Health *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	alive := func(c *gin.Context) {
		respond.OK(c, gin.H{"ok": healthSvc.Status()["ok"], "message": apiMessage})
	}
	r.GET("/", alive)
	r.GET("/readyz", func(c *gin.Context) {
		report := healthSvc.Ready(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", alive)
	api.Use(middleware.RateLimit(rateLimitConfig(deps.Config)))
	if deps.Jobs != nil {
		deps.Jobs.RegisterRoutes(api)
	}

	return r
}

func rateLimitConfig(cfg config.Config) middleware.RateLimitConfig {
	rules := map[string]middleware.RateLimitRule{}
	if cfg.AnalyzeRatePerMin > 0 {
		rules[groupAnalyze] = perMinute(cfg.AnalyzeRatePerMin)
	}
	if cfg.PollRatePerMin > 0 {
		rules[groupPolling] = perMinute(cfg.PollRatePerMin)
	}
	return middleware.RateLimitConfig{
		Rules: rules,
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost {
				return groupAnalyze
			}
			return groupPolling
		},
	}
}

func perMinute(n int) middleware.RateLimitRule {
	burst := n / 6
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimitRule{Rate: float64(n) / 60.0, Burst: burst}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
