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
	"github.com/arbmuseum/arb/backend/internal/util"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttachResult is the outcome of binding a session to an email identity
type AttachResult struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	TotalScore int    `json:"total_score"`
	PromoCode  string `json:"promo_code,omitempty"`
	Relinked   bool   `json:"relinked"`
}

// AttachIdentity links a session to the identity owning email, creating the
// identity if needed. A session may be re-linked; the identity it leaves is
// rescored as well.
func (e *Engine) AttachIdentity(ctx context.Context, sessionID, email string) (*AttachResult, error) {
	defer observe("attach_identity", time.Now())
	ctx, span := telemetry.GetBusinessEvents().TraceAttachIdentity(ctx, sessionID)
	defer span.End()

	sessionID = strings.TrimSpace(sessionID)
	email = util.NormalizeEmail(email)
	if sessionID == "" {
		return nil, apierrors.ValidationError("session_id", "session_id is required")
	}
	if !util.IsValidEmail(email) {
		return nil, apierrors.ValidationError("email", "invalid email address")
	}

	sess, err := e.loadSession(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	previous := ""
	if sess.UserID != nil {
		previous = *sess.UserID
	}

	// The link and both rescores commit together
	var user models.User
	var total, previousTotal int
	relinked := false
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := models.User{Email: email, Metadata: models.JSONMap{}}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&candidate).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if err := tx.Where("email = ?", email).First(&user).Error; err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		if err := tx.Model(&models.Session{}).Where("id = ?", sess.ID).Updates(map[string]interface{}{
			"user_id":       user.ID,
			"pending_email": email,
			"last_seen":     time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("failed to link session: %w", err)
		}

		relinked = previous != "" && previous != user.ID
		if relinked {
			score, err := e.persistScore(tx, previous)
			if err != nil && !apierrors.HasCode(err, apierrors.ErrNotFound) {
				return err
			}
			previousTotal = score
		}
		score, err := e.persistScore(tx, user.ID)
		if err != nil {
			return err
		}
		total = score
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID), attribute.Bool("identity.relinked", relinked))
	metrics.Get().IdentityAttachTotal.WithLabelValues(fmt.Sprintf("%t", relinked)).Inc()

	e.emit(ctx, sess.ID, nil, models.EventEmailSubmitted, models.JSONMap{
		"email":   email,
		"user_id": user.ID,
	})
	if relinked {
		e.emit(ctx, sess.ID, nil, models.EventIdentityRelinked, models.JSONMap{
			"from_user_id": previous,
			"to_user_id":   user.ID,
		})
		e.cache.Set(ctx, previous, previousTotal)
	}
	e.cache.Set(ctx, user.ID, total)

	result := &AttachResult{
		SessionID:  sess.ID,
		UserID:     user.ID,
		Email:      user.Email,
		TotalScore: total,
		Relinked:   relinked,
	}

	promo, err := e.CheckAndIssueReward(ctx, sess.ID, true)
	if err != nil {
		logger.Log.Warn("Completion check failed after identity attach",
			logger.WithSessionID(sess.ID), zap.Error(err))
		return result, nil
	}
	if promo == nil {
		return result, nil
	}

	if err := e.bindReward(ctx, promo, user); err != nil {
		logger.Log.Warn("Failed to bind promo code to identity",
			logger.WithPromoCode(promo.Code), zap.Error(err))
	}
	result.PromoCode = promo.Code

	if err := e.notifier.NotifyReward(ctx, promo.Code); err != nil {
		logger.Log.Warn("Failed to enqueue promo delivery",
			logger.WithPromoCode(promo.Code), logger.WithEmail(user.Email), zap.Error(err))
	}
	return result, nil
}

// bindReward points the code at user. A changed address clears sent_at so the
// code is delivered to the new one.
func (e *Engine) bindReward(ctx context.Context, promo *models.PromoCode, user models.User) error {
	updates := map[string]interface{}{"user_id": user.ID, "email": user.Email}
	if promo.Email == nil || *promo.Email != user.Email {
		updates["sent_at"] = nil
	}
	if err := e.db.WithContext(ctx).Model(&models.PromoCode{}).Where("id = ?", promo.ID).Updates(updates).Error; err != nil {
		return err
	}
	promo.UserID = &user.ID
	promo.Email = &user.Email
	if _, ok := updates["sent_at"]; ok {
		promo.SentAt = nil
	}
	return nil
}

// Rescore recomputes and persists an identity's total score
func (e *Engine) Rescore(ctx context.Context, userID string) (int, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, apierrors.NotFound("user")
	}
	e.cache.Invalidate(ctx, userID)
	return e.rescore(ctx, userID)
}

// rescore sets total_score to FirstViewPoints times the number of distinct
// assets viewed across all of the identity's sessions.
func (e *Engine) rescore(ctx context.Context, userID string) (int, error) {
	ctx, span := telemetry.GetBusinessEvents().TraceRescore(ctx, userID)
	defer span.End()

	score, err := e.persistScore(e.db.WithContext(ctx), userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	e.cache.Set(ctx, userID, score)
	span.SetAttributes(attribute.Int("user.total_score", score))
	return score, nil
}

// persistScore recomputes and stores total_score through db, which may be a
// transaction. The cache is left to the caller.
func (e *Engine) persistScore(db *gorm.DB, userID string) (int, error) {
	unique, err := countUniqueViewed(db, userID)
	if err != nil {
		return 0, err
	}
	score := int(unique) * e.cfg.FirstViewPoints

	res := db.Model(&models.User{}).Where("id = ?", userID).Update("total_score", score)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to persist total score: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err == nil && n == 0 {
			return 0, apierrors.NotFound("user")
		}
	}
	return score, nil
}

func (e *Engine) uniqueViewedForUser(ctx context.Context, userID string) (int64, error) {
	return countUniqueViewed(e.db.WithContext(ctx), userID)
}

func countUniqueViewed(db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.Model(&models.ItemProgress{}).
		Joins("JOIN sessions ON sessions.id = item_progress.session_id").
		Where("sessions.user_id = ? AND item_progress.times_viewed > 0", userID).
		Distinct("item_progress.asset_id").
		Count(&n).Error
	if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to count unique views: %w", err)
	}
	return n, nil
}
