package progress

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/arbmuseum/arb/backend/internal/database"
	apierrors "github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/telemetry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Promo lookup outcomes recorded on promo_checked events
const (
	PromoIssued       = "issued"
	PromoExists       = "exists"
	PromoNotCompleted = "not_completed"
)

var errRewardExists = stderrors.New("session already holds an unused promo code")

// CheckAndIssueReward issues the completion reward once the session has viewed
// every catalog item. It returns nil when the session is incomplete, or when
// a code already exists and returnExisting is false.
func (e *Engine) CheckAndIssueReward(ctx context.Context, sessionID string, returnExisting bool) (*models.PromoCode, error) {
	defer observe("check_reward", time.Now())
	ctx, span := telemetry.GetBusinessEvents().TraceRewardCheck(ctx, sessionID, returnExisting)
	defer span.End()

	m := metrics.Get()

	total, err := e.catalog.CountItems(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to count catalog: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	viewed, err := e.countViewed(ctx, e.db, sessionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if viewed < total {
		m.RewardsTotal.WithLabelValues(PromoNotCompleted).Inc()
		return nil, nil
	}

	existing, err := e.unusedCodeForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return e.existingReward(ctx, existing, returnExisting), nil
	}

	sess, err := e.loadSession(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	var email *string
	if sess.UserID != nil {
		var user models.User
		if err := e.db.WithContext(ctx).Select("id", "email").Where("id = ?", *sess.UserID).First(&user).Error; err == nil {
			email = &user.Email
		}
	}
	if email == nil && sess.PendingEmail != nil && *sess.PendingEmail != "" {
		email = sess.PendingEmail
	}

	for attempt := 0; attempt < e.cfg.MaxIssueAttempts; attempt++ {
		now := time.Now().UTC()
		promo := &models.PromoCode{
			Code:      NewPromoToken(sess.ID, now),
			SessionID: &sess.ID,
			UserID:    sess.UserID,
			Email:     email,
			IssuedAt:  &now,
			Meta:      models.JSONMap{"source": "completion", "items": total},
		}

		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var open int64
			if err := tx.Model(&models.PromoCode{}).
				Where("session_id = ? AND used_at IS NULL", sess.ID).
				Count(&open).Error; err != nil {
				return err
			}
			if open > 0 {
				return errRewardExists
			}
			return tx.Create(promo).Error
		})
		if err == nil {
			m.RewardsTotal.WithLabelValues(PromoIssued).Inc()
			e.emit(ctx, sess.ID, nil, models.EventRewardIssued, models.JSONMap{
				"code":     promo.Code,
				"existing": false,
			})
			return promo, nil
		}
		if !stderrors.Is(err, errRewardExists) && !database.IsDuplicateKey(err) {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to issue promo code: %w", err)
		}

		// Lost the race or collided on the code itself. The failed statement
		// may have aborted the transaction, so re-read outside it.
		existing, rerr := e.unusedCodeForSession(ctx, sess.ID)
		if rerr != nil {
			return nil, rerr
		}
		if existing != nil {
			return e.existingReward(ctx, existing, returnExisting), nil
		}
	}

	m.RewardsTotal.WithLabelValues("conflict").Inc()
	return nil, apierrors.Conflict("promo code")
}

func (e *Engine) existingReward(ctx context.Context, promo *models.PromoCode, returnExisting bool) *models.PromoCode {
	if !returnExisting {
		return nil
	}
	metrics.Get().RewardsTotal.WithLabelValues(PromoExists).Inc()
	if promo.SessionID != nil {
		e.emit(ctx, *promo.SessionID, nil, models.EventRewardIssued, models.JSONMap{
			"code":     promo.Code,
			"existing": true,
		})
	}
	return promo
}

// NewPromoToken builds PROMO-<8 hex of session id>-<HHMMSS>-<4 random hex>
func NewPromoToken(sessionID string, now time.Time) string {
	prefix := strings.ToUpper(strings.ReplaceAll(sessionID, "-", ""))
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	entropy := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:4]
	return fmt.Sprintf("PROMO-%s-%s-%s", prefix, now.UTC().Format("150405"), entropy)
}

func (e *Engine) countViewed(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.ItemProgress{}).
		Where("session_id = ? AND times_viewed > 0", sessionID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count viewed items: %w", err)
	}
	return n, nil
}

func (e *Engine) unusedCodeForSession(ctx context.Context, sessionID string) (*models.PromoCode, error) {
	return e.firstUnused(ctx, "session_id", sessionID)
}

func (e *Engine) unusedCodeForUser(ctx context.Context, userID string) (*models.PromoCode, error) {
	return e.firstUnused(ctx, "user_id", userID)
}

func (e *Engine) firstUnused(ctx context.Context, column, value string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := e.db.WithContext(ctx).
		Where(column+" = ? AND used_at IS NULL", value).
		Order("issued_at DESC").
		First(&promo).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load promo code: %w", err)
	}
	return &promo, nil
}

// ConsumeReward marks a code as used. Consumption is the only transition that
// lets a session be issued a second code.
func (e *Engine) ConsumeReward(ctx context.Context, code string) (*models.PromoCode, error) {
	defer observe("consume_reward", time.Now())

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apierrors.ValidationError("code", "code is required")
	}

	now := time.Now().UTC()
	res := e.db.WithContext(ctx).Model(&models.PromoCode{}).
		Where("code = ? AND used_at IS NULL", code).
		Update("used_at", now)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to consume promo code: %w", res.Error)
	}

	var promo models.PromoCode
	if err := e.db.WithContext(ctx).Where("code = ?", code).First(&promo).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("promo code")
		}
		return nil, fmt.Errorf("failed to load promo code: %w", err)
	}
	if res.RowsAffected == 0 {
		return nil, apierrors.Conflict("promo code").WithDetails("already used")
	}

	metrics.Get().RewardsTotal.WithLabelValues("consumed").Inc()
	if promo.SessionID != nil {
		e.emit(ctx, *promo.SessionID, nil, models.EventRewardConsumed, models.JSONMap{"code": promo.Code})
	}
	return &promo, nil
}
