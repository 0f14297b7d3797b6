package handlers

import (
	"net/http"

	"github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// ListAlerts returns promo delivery alerts. ?all=true includes resolved ones.
// GET /api/v1/admin/alerts
func (h *Handlers) ListAlerts(c *gin.Context) {
	if h.alerts == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("alerts"))
		return
	}

	if c.Query("refresh") == "true" {
		if err := h.alerts.EvaluateRules(c.Request.Context()); err != nil {
			util.RespondWithError(c, err)
			return
		}
	}

	manager := h.alerts.Manager()
	list := manager.GetActiveAlerts()
	if c.Query("all") == "true" {
		list = manager.GetAllAlerts()
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": list,
		"stats":  manager.GetStats(),
		"rules":  manager.GetAllRules(),
	})
}
