package middleware

import (
	"net/http"

	"tasklist/backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// RecoveryWithLog turns a panic into a 500 response and logs it.
func RecoveryWithLog(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Errorw("Panic recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Server error",
		})
	})
}
