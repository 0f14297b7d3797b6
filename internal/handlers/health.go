package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Health returns the configured health message once the database answers
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logger.Log.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unreachable",
		})
		return
	}

	c.String(http.StatusOK, h.healthMessage)
}
