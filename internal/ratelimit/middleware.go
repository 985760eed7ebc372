package ratelimit

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/osspulse/oss-pulse/internal/errors"
)

// Middleware enforces the per-IP rate limit on every request.
func Middleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := rl.Allow(c.Request.Context(), c.ClientIP())

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", res.ResetAt.Unix()))

		if !res.Allowed {
			retryAfter := res.RetryAfter
			if retryAfter <= 0 {
				retryAfter = time.Second
			}
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds()+0.999)))
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock()
			}
			apperrors.RespondWithError(c, apperrors.NewRateLimitError("rate limit exceeded", retryAfter))
			return
		}

		c.Next()
	}
}
