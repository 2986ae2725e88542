package middleware

import (
	"errors"
	"net/http"
	"strings"

	"tasklist/backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

type AuthConfig struct {
	Secret string
	// Issuer, when set, must match the token's iss claim.
	Issuer string
}

// Claims are the token fields this API relies on. Tokens are issued by the
// authentication service; the user id travels in user_id or, failing that, sub.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) userID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

var errMissingUserID = errors.New("token carries no user id")

// AuthMiddleware verifies the bearer token and stores the caller's id under
// "user_id" in the gin context.
func AuthMiddleware(config AuthConfig, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("auth")

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(config.Secret), nil
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Not authorized, no token")
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims := &Claims{}
		token, err := parser.ParseWithClaims(tokenStr, claims, keyFunc)
		if err == nil && !token.Valid {
			err = jwt.ErrTokenInvalidClaims
		}
		if err == nil {
			if _, parseErr := uuid.FromString(claims.userID()); parseErr != nil {
				err = errMissingUserID
			}
		}
		if err != nil {
			log.LogSecurityEvent("token_rejected", claims.userID(), map[string]interface{}{
				"reason": err.Error(),
				"ip":     c.ClientIP(),
				"path":   c.Request.URL.Path,
			})
			abortUnauthorized(c, "Not authorized, token failed")
			return
		}

		c.Set("user_id", claims.userID())
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
	})
}
