package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/osspulse/oss-pulse/internal/config"
	"github.com/osspulse/oss-pulse/internal/monitoring"
	"github.com/osspulse/oss-pulse/internal/ratelimit"
)

// NewRouter assembles the gin engine with middleware and routes.
func NewRouter(cfg *config.Config, h *Handler, limiter *ratelimit.RateLimiter, metrics *monitoring.Metrics, logger *monitoring.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(MonitoringMiddleware(metrics, logger))

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	if limiter != nil {
		r.Use(ratelimit.Middleware(limiter))
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", h.GetMetrics)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/health/compute", h.ComputeHealth)
		v1.POST("/health/compute/batch", h.ComputeHealthBatch)
		v1.GET("/health/:owner/:name", h.GetSnapshot)
		v1.GET("/composite/:kind", h.GetComposite)
		v1.POST("/newcomer/recommend", h.RecommendNewcomer)
	}

	return r
}
