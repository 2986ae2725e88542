package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/monitoring"

	"github.com/gin-gonic/gin"
)

// KeyFor limits authenticated callers per user and everyone else per IP.
func KeyFor(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

// ClientIPKey limits by client IP only. It is used ahead of authentication.
func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// Middleware rejects requests over the limit with 429, keyed by KeyFor.
func Middleware(limiter Limiter, log *logger.Logger) gin.HandlerFunc {
	return MiddlewareWithKey(limiter, log, KeyFor)
}

// MiddlewareWithKey rejects requests over the limit with 429. When the
// limiter itself fails the request is let through.
func MiddlewareWithKey(limiter Limiter, log *logger.Logger, key func(*gin.Context) string) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(c *gin.Context) {
		result, err := limiter.Allow(c.Request.Context(), key(c))
		if err != nil {
			log.WithError(err).Error("Rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(math.Ceil(time.Until(result.ResetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			monitoring.RecordRateLimited(result.Backend)
			log.LogSecurityEvent("rate_limited", c.GetString("user_id"), map[string]interface{}{
				"ip":      c.ClientIP(),
				"backend": result.Backend,
			})
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests, please try again later",
			})
			return
		}

		c.Next()
	}
}
