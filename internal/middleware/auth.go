package middleware

import (
	"strings"

	"github.com/arbmuseum/arb/backend/internal/auth"
	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequireAuth validates the bearer token and stores the account in the context
func RequireAuth(authService auth.AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			util.RespondUnauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		account, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			logger.Log.Debug("Token rejected", zap.Error(err))
			util.RespondUnauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(util.ContextAccountKey, account)
		c.Set(util.ContextAccountIDKey, account.ID)
		c.Next()
	}
}

// OptionalAuth attaches the account when a valid token is present and
// otherwise lets the request through anonymously
func OptionalAuth(authService auth.AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if account, err := authService.ValidateToken(c.Request.Context(), token); err == nil {
				c.Set(util.ContextAccountKey, account)
				c.Set(util.ContextAccountIDKey, account.ID)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
