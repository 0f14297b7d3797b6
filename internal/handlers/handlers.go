package handlers

import (
	"github.com/arbmuseum/arb/backend/internal/alerts"
	"github.com/arbmuseum/arb/backend/internal/auth"
	"github.com/arbmuseum/arb/backend/internal/progress"
	"github.com/arbmuseum/arb/backend/internal/scoring"
	"github.com/arbmuseum/arb/backend/internal/stats"
	"gorm.io/gorm"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db             *gorm.DB
	engine         *progress.Engine
	stats          *stats.Service
	auth           auth.AuthServiceInterface
	uploader       *scoring.Uploader
	alerts         *alerts.Evaluator
	healthMessage  string
	maxUploadBytes int64
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *gorm.DB, engine *progress.Engine) *Handlers {
	return &Handlers{
		db:            db,
		engine:        engine,
		stats:         stats.NewService(db),
		healthMessage: "ok",
	}
}

// SetAuthService sets the AR account service
func (h *Handlers) SetAuthService(svc auth.AuthServiceInterface) {
	h.auth = svc
}

// SetUploader sets the video upload pipeline and the request body limit
func (h *Handlers) SetUploader(uploader *scoring.Uploader, maxBytes int64) {
	h.uploader = uploader
	h.maxUploadBytes = maxBytes
}

// SetStatsService replaces the analytics service
func (h *Handlers) SetStatsService(svc *stats.Service) {
	h.stats = svc
}

// SetHealthMessage sets the text returned by /health
func (h *Handlers) SetHealthMessage(msg string) {
	if msg != "" {
		h.healthMessage = msg
	}
}

// SetAlertEvaluator enables the admin alerts endpoint
func (h *Handlers) SetAlertEvaluator(e *alerts.Evaluator) {
	h.alerts = e
}
