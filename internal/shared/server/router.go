package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docanalysis-backend/internal/queryresults"
	"docanalysis-backend/internal/services/health"
	"docanalysis-backend/internal/shared/config"
	"docanalysis-backend/internal/shared/metrics"
	"docanalysis-backend/internal/shared/server/middleware"
	"docanalysis-backend/internal/shared/server/respond"
)

// RouterDeps lists what the router needs. A nil QueryResults handler leaves
// the process-data routes unregistered.
type RouterDeps struct {
	Config       config.Config
	Health       *health.Service
	QueryResults *queryresults.Handler
	RateLimiter  *middleware.RateLimiter
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
		healthSvc = health.NewService(nil, deps.Config.DataStore)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		st := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})

	if deps.QueryResults != nil {
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: deps.RateLimiter,
			Rules: map[string]middleware.RateLimitRule{
				middleware.GroupRead: {Rate: 10, Burst: 20},
				middleware.GroupRun:  {Rate: 2, Burst: 5},
			},
		}))
		deps.QueryResults.RegisterRoutes(api)
	}

	return r
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
