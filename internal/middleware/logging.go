package middleware

import (
	"time"

	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/services"

	"github.com/gin-gonic/gin"
)

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log.LogHTTPRequest(
			c.Request.Method,
			path,
			c.ClientIP(),
			c.Writer.Status(),
			float64(time.Since(start).Microseconds())/1000,
		)
	}
}

// RequestInfo attaches the caller's transport details to the request context
// so authorization denials can be audited.
func RequestInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := services.WithRequestInfo(c.Request.Context(), services.RequestInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
