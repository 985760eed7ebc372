package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/osspulse/oss-pulse/internal/monitoring"
)

// RequestIDMiddleware tags every request with a UUID for log correlation.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// MonitoringMiddleware records request counters, durations, and access logs.
func MonitoringMiddleware(metrics *monitoring.Metrics, logger *monitoring.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		metrics.IncrementRequest()
		metrics.RecordResponseTime(duration)

		status := c.Writer.Status()
		if status >= 400 {
			metrics.IncrementError()
		}

		logger.RequestLogger(
			c.Request.Method,
			c.Request.URL.Path,
			c.ClientIP(),
			c.GetString("request_id"),
			status,
			duration,
		)
	}
}
