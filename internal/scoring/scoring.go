// Package scoring awards points to AR accounts for uploaded videos.
package scoring

import (
	"context"
	"fmt"
	"time"

	apierrors "github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Service applies the upload scoring rule
type Service struct {
	db               *gorm.DB
	pointsPerVideo   int
	firstUploadBonus int
}

// NewService creates a scoring service
func NewService(db *gorm.DB, pointsPerVideo, firstUploadBonus int) *Service {
	return &Service{db: db, pointsPerVideo: pointsPerVideo, firstUploadBonus: firstUploadBonus}
}

// AwardForVideo adds PointsPerVideo to the account and, the first time only,
// FirstUploadBonus. The bonus is claimed with a conditional update on
// first_upload_bonus_at so concurrent uploads cannot both receive it.
func (s *Service) AwardForVideo(ctx context.Context, accountID string) (added int, bonusApplied bool, err error) {
	ctx, span := telemetry.GetBusinessEvents().TraceAwardForVideo(ctx, accountID)
	defer span.End()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).Where("id = ?", accountID).
			Update("score", gorm.Expr("score + ?", s.pointsPerVideo))
		if res.Error != nil {
			return fmt.Errorf("failed to add video points: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apierrors.NotFound("account")
		}
		added = s.pointsPerVideo

		if s.firstUploadBonus <= 0 {
			return nil
		}
		claim := tx.Model(&models.Account{}).
			Where("id = ? AND first_upload_bonus_at IS NULL", accountID).
			Updates(map[string]interface{}{
				"score":                 gorm.Expr("score + ?", s.firstUploadBonus),
				"first_upload_bonus_at": time.Now().UTC(),
			})
		if claim.Error != nil {
			return fmt.Errorf("failed to apply first upload bonus: %w", claim.Error)
		}
		if claim.RowsAffected == 1 {
			added += s.firstUploadBonus
			bonusApplied = true
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, false, err
	}

	m := metrics.Get()
	m.PointsAwardedTotal.WithLabelValues("video").Add(float64(s.pointsPerVideo))
	if bonusApplied {
		m.PointsAwardedTotal.WithLabelValues("first_upload_bonus").Add(float64(s.firstUploadBonus))
	}
	span.SetAttributes(attribute.Int("score.added", added), attribute.Bool("score.bonus_applied", bonusApplied))
	return added, bonusApplied, nil
}
