package middleware

import (
	"github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// RequireAdmin ensures the request carries an authenticated admin account.
// It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := util.GetAccountFromContext(c)
		if !ok {
			c.Abort()
			return
		}

		if !account.IsAdmin {
			util.RespondWithAPIError(c, errors.Forbidden("admin access required"))
			c.Abort()
			return
		}

		c.Next()
	}
}
