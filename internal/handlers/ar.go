package handlers

import (
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/arbmuseum/arb/backend/internal/auth"
	"github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/middleware"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/scoring"
	"github.com/arbmuseum/arb/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// Register creates an AR account
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "email", "a valid email and a password of at least 6 characters are required")
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp.Account)
}

// Login exchanges credentials for a bearer token
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "email", "email and password are required")
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated account
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	account, ok := util.GetAccountFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, account)
}

// PromoteAdmin grants admin rights to another account
// POST /api/v1/auth/promote/:id
func (h *Handlers) PromoteAdmin(c *gin.Context) {
	account, err := h.auth.SetAdmin(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, auth.ErrAccountExists):
		util.RespondWithAPIError(c, errors.ValidationError("email", "account already exists"))
	case stderrors.Is(err, auth.ErrInvalidEmail):
		util.RespondValidationError(c, "email", "invalid email address")
	case stderrors.Is(err, auth.ErrInvalidCredentials):
		util.RespondUnauthorized(c, "invalid email or password")
	case stderrors.Is(err, auth.ErrAccountInactive):
		util.RespondForbidden(c, "account is inactive")
	case stderrors.Is(err, auth.ErrAccountNotFound):
		util.RespondNotFound(c, "account")
	default:
		util.RespondWithError(c, err)
	}
}

// UploadVideo stores an AR recording and scores it
// POST /api/v1/videos/upload (multipart: file, character_id)
func (h *Handlers) UploadVideo(c *gin.Context) {
	accountID, ok := util.GetAccountIDFromContext(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}
	if h.uploader == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("video upload"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		util.RespondValidationError(c, "file", "file is required")
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		middleware.RecordError("payload_too_large", c.FullPath())
		util.RespondWithAPIError(c, errors.PayloadTooLarge("video is too large"))
		return
	}

	characterID, err := util.ParseOptionalUint(c.PostForm("character_id"))
	if err != nil {
		util.RespondValidationError(c, "character_id", "character_id must be a positive integer")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	defer f.Close()

	reader := io.Reader(f)
	if h.maxUploadBytes > 0 {
		// One byte past the limit lets the pipeline see the overflow
		reader = io.LimitReader(f, h.maxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	result, err := h.uploader.Upload(c.Request.Context(), scoring.UploadInput{
		AccountID:   accountID,
		CharacterID: characterID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SubmitLog stores a client log line
// POST /api/v1/logs
func (h *Handlers) SubmitLog(c *gin.Context) {
	accountID, ok := util.GetAccountIDFromContext(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	var req struct {
		Level   string  `json:"level" binding:"required,max=32"`
		Message string  `json:"message" binding:"required"`
		Context *string `json:"context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "level", "level and message are required")
		return
	}

	entry := models.ClientLog{
		AccountID: &accountID,
		Level:     strings.ToUpper(strings.TrimSpace(req.Level)),
		Message:   req.Message,
		Context:   req.Context,
		Locale:    middleware.LocaleFrom(c),
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ListLogs returns the latest 200 client log lines
// GET /api/v1/logs (admin)
func (h *Handlers) ListLogs(c *gin.Context) {
	var entries []models.ClientLog
	if err := h.db.WithContext(c.Request.Context()).Order("id DESC").Limit(200).Find(&entries).Error; err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
