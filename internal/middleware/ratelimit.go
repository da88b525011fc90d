package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/internal/ratelimit"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/response"
)

// RateLimit limits requests per (client IP, route) using the supplied limiter.
// Store failures let the request through.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	log := logger.WithModule("ratelimit")

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(decision.ResetIn.Seconds())))

		if !decision.Allowed {
			response.Abort(c, errors.ErrRateLimit)
			return
		}

		c.Next()
	}
}
