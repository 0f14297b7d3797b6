package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/progress"
	"github.com/arbmuseum/arb/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// StartSession opens an anonymous visit
// POST /api/v1/session/start
func (h *Handlers) StartSession(c *gin.Context) {
	var req struct {
		Metadata map[string]interface{} `json:"metadata"`
	}
	// Body is optional
	_ = c.ShouldBindJSON(&req)

	meta := req.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	if ua := c.Request.UserAgent(); ua != "" {
		meta["user_agent"] = ua
	}
	meta["ip"] = c.ClientIP()

	sess, err := h.engine.StartSession(c.Request.Context(), meta)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

// RecordView records that a session viewed an asset. Every body field other
// than session_id and asset_slug is kept as the event payload.
// POST /api/v1/view
func (h *Handlers) RecordView(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		util.RespondBadRequest(c, "invalid_request", "request body must be a JSON object")
		return
	}

	sessionID, _ := body["session_id"].(string)
	assetSlug, _ := body["asset_slug"].(string)
	delete(body, "session_id")
	delete(body, "asset_slug")

	result, err := h.engine.RecordView(c.Request.Context(), sessionID, assetSlug, body)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SubmitEmail attaches a session to an email identity
// POST /api/v1/user/email
func (h *Handlers) SubmitEmail(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		Email     string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid_request", "request body must be a JSON object")
		return
	}

	result, err := h.engine.AttachIdentity(c.Request.Context(), req.SessionID, req.Email)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProgress reports completion for a session or an identity
// GET /api/v1/progress?session_id=...|user_id=...
func (h *Handlers) GetProgress(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	userID := strings.TrimSpace(c.Query("user_id"))

	var (
		p   *progress.Progress
		err error
	)
	switch {
	case userID != "":
		p, err = h.engine.UserProgress(c.Request.Context(), userID)
	case sessionID != "":
		p, err = h.engine.SessionProgress(c.Request.Context(), sessionID)
	default:
		util.RespondWithAPIError(c, errors.ValidationError("session_id", "session_id or user_id is required"))
		return
	}
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// GetPromo returns the caller's promo code, issuing it if the visit is complete
// GET /api/v1/promo?session_id=...|user_id=...|email=...
func (h *Handlers) GetPromo(c *gin.Context) {
	found, err := h.engine.LookupPromo(c.Request.Context(), progress.PromoQuery{
		SessionID: c.Query("session_id"),
		UserID:    c.Query("user_id"),
		Email:     c.Query("email"),
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"promo_code": found.Code.Code,
		"result":     found.Result,
		"issued_at":  found.Code.IssuedAt,
		"sent":       found.Code.SentAt != nil,
	})
}

// GetStats returns view counts and today's best asset
// GET /api/v1/stats
func (h *Handlers) GetStats(c *gin.Context) {
	summary, err := h.stats.Summary(c.Request.Context(), time.Now())
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ConsumePromo marks a promo code as redeemed
// POST /api/v1/admin/promo/:code/consume
func (h *Handlers) ConsumePromo(c *gin.Context) {
	promo, err := h.engine.ConsumeReward(c.Request.Context(), c.Param("code"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, promo)
}

// RescoreUser recomputes an identity's total score from all of its sessions
// POST /api/v1/admin/users/:id/rescore
func (h *Handlers) RescoreUser(c *gin.Context) {
	userID := c.Param("id")
	score, err := h.engine.Rescore(c.Request.Context(), userID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "total_score": score})
}
