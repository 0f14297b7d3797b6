package progress

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apierrors "github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ViewResult is the outcome of recording one view
type ViewResult struct {
	AwardedPoints int    `json:"awarded_points"`
	SessionScore  int    `json:"session_score"`
	TimesViewed   int    `json:"times_viewed"`
	PromoCode     string `json:"promo_code,omitempty"`
}

// RecordView records that a session viewed an asset. The first view of each
// (session, asset) pair awards FirstViewPoints exactly once, however many
// callers race on it.
func (e *Engine) RecordView(ctx context.Context, sessionID, assetSlug string, payload map[string]interface{}) (*ViewResult, error) {
	defer observe("record_view", time.Now())
	ctx, span := telemetry.GetBusinessEvents().TraceRecordView(ctx, sessionID, assetSlug)
	defer span.End()

	sessionID = strings.TrimSpace(sessionID)
	assetSlug = strings.TrimSpace(assetSlug)
	if sessionID == "" {
		return nil, apierrors.ValidationError("session_id", "session_id is required")
	}
	if assetSlug == "" {
		return nil, apierrors.ValidationError("asset_slug", "asset_slug is required")
	}

	sess, err := e.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var asset models.Asset
	if err := e.db.WithContext(ctx).Where("slug = ?", assetSlug).First(&asset).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("asset")
		}
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}

	now := time.Now().UTC()
	awarded := false
	var row models.ItemProgress
	var score int

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.ItemProgress{SessionID: sess.ID, AssetID: asset.ID}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "asset_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to create progress: %w", err)
		}

		claim := tx.Model(&models.ItemProgress{}).
			Where("session_id = ? AND asset_id = ? AND times_viewed = 0", sess.ID, asset.ID).
			Updates(map[string]interface{}{"times_viewed": 1, "viewed_at": now})
		if claim.Error != nil {
			return fmt.Errorf("failed to claim first view: %w", claim.Error)
		}
		awarded = claim.RowsAffected == 1

		if !awarded {
			if err := tx.Model(&models.ItemProgress{}).
				Where("session_id = ? AND asset_id = ?", sess.ID, asset.ID).
				Update("times_viewed", gorm.Expr("times_viewed + ?", 1)).Error; err != nil {
				return fmt.Errorf("failed to increment views: %w", err)
			}
		}

		sessUpdates := map[string]interface{}{"last_seen": now}
		if awarded && e.cfg.FirstViewPoints > 0 {
			sessUpdates["score"] = gorm.Expr("score + ?", e.cfg.FirstViewPoints)
		}
		if err := tx.Model(&models.Session{}).Where("id = ?", sess.ID).Updates(sessUpdates).Error; err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}

		if err := tx.Where("session_id = ? AND asset_id = ?", sess.ID, asset.ID).First(&row).Error; err != nil {
			return fmt.Errorf("failed to read progress: %w", err)
		}
		var fresh models.Session
		if err := tx.Select("id", "score").Where("id = ?", sess.ID).First(&fresh).Error; err != nil {
			return fmt.Errorf("failed to read session score: %w", err)
		}
		score = fresh.Score
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ViewResult{SessionScore: score, TimesViewed: row.TimesViewed}
	if awarded {
		result.AwardedPoints = e.cfg.FirstViewPoints
	}
	span.SetAttributes(
		attribute.Bool("view.first", awarded),
		attribute.Int("view.times_viewed", row.TimesViewed),
	)

	m := metrics.Get()
	eventPayload := models.JSONMap{}
	for k, v := range payload {
		eventPayload[k] = v
	}
	eventPayload["asset_slug"] = asset.Slug
	eventPayload["times_viewed"] = row.TimesViewed
	e.emit(ctx, sess.ID, &asset.ID, models.EventViewedItem, eventPayload)

	if awarded {
		m.ViewsTotal.WithLabelValues("first").Inc()
		m.PointsAwardedTotal.WithLabelValues("first_view").Add(float64(result.AwardedPoints))
		e.emit(ctx, sess.ID, &asset.ID, models.EventFirstViewAwarded, models.JSONMap{
			"asset_slug": asset.Slug,
			"points":     result.AwardedPoints,
		})
		if sess.UserID != nil {
			e.cache.Invalidate(ctx, *sess.UserID)
			if _, err := e.rescore(ctx, *sess.UserID); err != nil {
				logger.Log.Warn("Failed to rescore identity after view",
					logger.WithUserID(*sess.UserID), zap.Error(err))
			}
		}
	} else {
		m.ViewsTotal.WithLabelValues("repeat").Inc()
	}

	promo, err := e.CheckAndIssueReward(ctx, sess.ID, false)
	if err != nil {
		logger.Log.Warn("Completion check failed after view",
			logger.WithSessionID(sess.ID), zap.Error(err))
	} else if promo != nil {
		result.PromoCode = promo.Code
		if promo.Email != nil {
			if err := e.notifier.NotifyReward(ctx, promo.Code); err != nil {
				logger.Log.Warn("Failed to enqueue promo delivery",
					logger.WithPromoCode(promo.Code), zap.Error(err))
			}
		}
	}

	return result, nil
}

// liveSession loads an active session. Malformed ids cannot resolve.
func (e *Engine) liveSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return e.loadSession(ctx, sessionID, true)
}

func (e *Engine) loadSession(ctx context.Context, sessionID string, activeOnly bool) (*models.Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, apierrors.NotFound("session")
	}
	q := e.db.WithContext(ctx).Where("id = ?", sessionID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var sess models.Session
	if err := q.First(&sess).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("session")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &sess, nil
}
