package progress

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apierrors "github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/util"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Progress summarizes completion for a session or an identity
type Progress struct {
	TotalAssets     int64 `json:"total_assets"`
	ViewedAssets    int64 `json:"viewed_assets"`
	RemainingAssets int64 `json:"remaining_assets"`
	TotalScore      int   `json:"total_score"`
}

func newProgress(total, viewed int64, score int) *Progress {
	remaining := total - viewed
	if remaining < 0 {
		remaining = 0
	}
	return &Progress{TotalAssets: total, ViewedAssets: viewed, RemainingAssets: remaining, TotalScore: score}
}

// StartSession creates a live anonymous session
func (e *Engine) StartSession(ctx context.Context, metadata map[string]interface{}) (*models.Session, error) {
	defer observe("start_session", time.Now())

	meta := models.JSONMap{}
	for k, v := range metadata {
		meta[k] = v
	}
	sess := &models.Session{IsActive: true, Metadata: meta, LastSeen: time.Now().UTC()}
	if err := e.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	e.emit(ctx, sess.ID, nil, models.EventSessionStarted, models.JSONMap{})
	return sess, nil
}

// EndSession marks a session inactive. Further views are rejected.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	sess, err := e.loadSession(ctx, sessionID, false)
	if err != nil {
		return err
	}
	return e.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", sess.ID).
		Update("is_active", false).Error
}

// SessionProgress reports how far a session is through the catalog
func (e *Engine) SessionProgress(ctx context.Context, sessionID string) (*Progress, error) {
	defer observe("session_progress", time.Now())

	sess, err := e.loadSession(ctx, strings.TrimSpace(sessionID), false)
	if err != nil {
		return nil, err
	}
	total, err := e.catalog.CountItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count catalog: %w", err)
	}
	viewed, err := e.countViewed(ctx, e.db, sess.ID)
	if err != nil {
		return nil, err
	}

	p := newProgress(total, viewed, sess.Score)
	e.emit(ctx, sess.ID, nil, models.EventProgressViewed, models.JSONMap{
		"viewed_assets": viewed,
		"total_assets":  total,
	})
	return p, nil
}

// UserProgress reports progress over the union of an identity's sessions.
// The total score comes from the score cache when present.
func (e *Engine) UserProgress(ctx context.Context, userID string) (*Progress, error) {
	defer observe("user_progress", time.Now())

	user, err := e.loadUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	total, err := e.catalog.CountItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count catalog: %w", err)
	}
	viewed, err := e.uniqueViewedForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	score, ok := e.cache.Get(ctx, user.ID)
	if !ok {
		score = int(viewed) * e.cfg.FirstViewPoints
		if score != user.TotalScore {
			if err := e.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
				Update("total_score", score).Error; err != nil {
				return nil, fmt.Errorf("failed to persist total score: %w", err)
			}
		}
		e.cache.Set(ctx, user.ID, score)
	}
	return newProgress(total, viewed, score), nil
}

func (e *Engine) loadUser(ctx context.Context, userID string) (*models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, apierrors.NotFound("user")
	}
	var user models.User
	if err := e.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("user")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (e *Engine) loadUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := e.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("user")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// PromoQuery selects whose promo code to look up. At least one field is required.
type PromoQuery struct {
	SessionID string
	UserID    string
	Email     string
}

// PromoLookup is a found code and how it was obtained
type PromoLookup struct {
	Code   *models.PromoCode `json:"promo"`
	Result string            `json:"result"`
}

// LookupPromo returns the caller's unused code, issuing one when the relevant
// session has completed the catalog.
func (e *Engine) LookupPromo(ctx context.Context, q PromoQuery) (*PromoLookup, error) {
	defer observe("lookup_promo", time.Now())

	q.SessionID = strings.TrimSpace(q.SessionID)
	q.UserID = strings.TrimSpace(q.UserID)
	q.Email = util.NormalizeEmail(q.Email)
	if q.SessionID == "" && q.UserID == "" && q.Email == "" {
		return nil, apierrors.ValidationError("session_id", "one of session_id, user_id or email is required")
	}

	var user *models.User
	var sess *models.Session
	var err error

	switch {
	case q.UserID != "":
		user, err = e.loadUser(ctx, q.UserID)
	case q.Email != "":
		if !util.IsValidEmail(q.Email) {
			return nil, apierrors.ValidationError("email", "invalid email address")
		}
		user, err = e.loadUserByEmail(ctx, q.Email)
	}
	if err != nil {
		return nil, err
	}

	if q.SessionID != "" {
		if sess, err = e.loadSession(ctx, q.SessionID, false); err != nil {
			return nil, err
		}
		if user == nil && sess.UserID != nil {
			if user, err = e.loadUser(ctx, *sess.UserID); err != nil {
				return nil, err
			}
		}
	}

	var existing *models.PromoCode
	if user != nil {
		existing, err = e.unusedCodeForUser(ctx, user.ID)
	} else {
		existing, err = e.unusedCodeForSession(ctx, sess.ID)
	}
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// A code earned by the queried session reads as issued; one carried
		// over from another session of the identity reads as exists.
		result := PromoExists
		if sess != nil && existing.SessionID != nil && *existing.SessionID == sess.ID {
			result = PromoIssued
		}
		e.recordPromoCheck(ctx, sess, existing, result)
		return &PromoLookup{Code: existing, Result: result}, nil
	}

	if sess == nil && user != nil {
		var latest models.Session
		err := e.db.WithContext(ctx).Where("user_id = ?", user.ID).Order("last_seen DESC").First(&latest).Error
		if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load latest session: %w", err)
		}
		if err == nil {
			sess = &latest
		}
	}

	if sess != nil {
		promo, err := e.CheckAndIssueReward(ctx, sess.ID, true)
		if err != nil {
			return nil, err
		}
		if promo != nil {
			e.recordPromoCheck(ctx, sess, promo, PromoIssued)
			return &PromoLookup{Code: promo, Result: PromoIssued}, nil
		}
	}

	e.recordPromoCheck(ctx, sess, nil, PromoNotCompleted)
	return nil, apierrors.NotFound("promo code").WithDetails(PromoNotCompleted)
}

func (e *Engine) recordPromoCheck(ctx context.Context, sess *models.Session, promo *models.PromoCode, result string) {
	sessionID := ""
	if sess != nil {
		sessionID = sess.ID
	} else if promo != nil && promo.SessionID != nil {
		sessionID = *promo.SessionID
	}
	if sessionID == "" {
		return
	}
	payload := models.JSONMap{"result": result}
	if promo != nil {
		payload["code"] = promo.Code
	}
	e.emit(ctx, sessionID, nil, models.EventRewardChecked, payload)
}
