package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/arbmuseum/arb/backend/internal/models"
)

// Context keys set by the auth middleware
const (
	ContextAccountKey   = "account"
	ContextAccountIDKey = "account_id"
)

// GetAccountFromContext extracts the authenticated account from the Gin context.
// If the request is not authenticated, it responds with 401 Unauthorized.
func GetAccountFromContext(c *gin.Context) (*models.Account, bool) {
	account, exists := c.Get(ContextAccountKey)
	if !exists {
		RespondUnauthorized(c)
		return nil, false
	}
	accountPtr, ok := account.(*models.Account)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "invalid account data in context"})
		return nil, false
	}
	return accountPtr, true
}

// GetAccountIDFromContext returns the authenticated account ID, or "" and false
// for anonymous requests. Unlike GetAccountFromContext it never writes a response.
func GetAccountIDFromContext(c *gin.Context) (string, bool) {
	id, exists := c.Get(ContextAccountIDKey)
	if !exists {
		return "", false
	}
	idStr, ok := id.(string)
	return idStr, ok && idStr != ""
}
