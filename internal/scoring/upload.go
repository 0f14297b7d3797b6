package scoring

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	apierrors "github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/storage"
	"github.com/arbmuseum/arb/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UploadLimits bounds accepted videos
type UploadLimits struct {
	AllowedMIME string
	MaxBytes    int64
}

// UploadInput is one received video
type UploadInput struct {
	AccountID   string
	CharacterID *uint
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult is returned to the uploading client
type UploadResult struct {
	Video        *models.Video `json:"video"`
	AddedScore   int           `json:"added_score"`
	BonusApplied bool          `json:"bonus_applied"`
}

// Uploader stores videos and scores them
type Uploader struct {
	db      *gorm.DB
	store   storage.VideoStore
	scoring *Service
	limits  UploadLimits
}

// NewUploader creates an upload pipeline
func NewUploader(db *gorm.DB, store storage.VideoStore, scoring *Service, limits UploadLimits) *Uploader {
	return &Uploader{db: db, store: store, scoring: scoring, limits: limits}
}

// Upload validates, stores, records and scores one video
func (u *Uploader) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	ctx, span := telemetry.GetBusinessEvents().TraceVideoUpload(ctx, in.AccountID, int64(len(in.Data)))
	defer span.End()
	m := metrics.Get()

	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(in.ContentType, ";", 2)[0]))
	if contentType != strings.ToLower(u.limits.AllowedMIME) {
		m.VideoUploadsTotal.WithLabelValues("bad_mime").Inc()
		return nil, apierrors.UnsupportedMediaType(fmt.Sprintf("only %s videos are accepted", u.limits.AllowedMIME))
	}
	if u.limits.MaxBytes > 0 && int64(len(in.Data)) > u.limits.MaxBytes {
		m.VideoUploadsTotal.WithLabelValues("too_large").Inc()
		return nil, apierrors.PayloadTooLarge(fmt.Sprintf("video exceeds %d bytes", u.limits.MaxBytes))
	}
	if len(in.Data) == 0 {
		return nil, apierrors.ValidationError("file", "file is empty")
	}

	if in.CharacterID != nil {
		var character models.Character
		if err := u.db.WithContext(ctx).Select("id").Where("id = ?", *in.CharacterID).First(&character).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				m.VideoUploadsTotal.WithLabelValues("unknown_character").Inc()
				return nil, apierrors.NotFound("character")
			}
			return nil, fmt.Errorf("failed to load character: %w", err)
		}
	}

	stored, err := u.store.SaveVideo(ctx, in.Data, in.AccountID, in.Filename, contentType)
	if err != nil {
		telemetry.RecordError(span, err)
		m.VideoUploadsTotal.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("failed to store video: %w", err)
	}

	video := &models.Video{
		AccountID:   in.AccountID,
		CharacterID: in.CharacterID,
		StorageKey:  stored.Key,
		URL:         stored.URL,
		SizeBytes:   int64(len(in.Data)),
		ContentType: contentType,
	}
	if err := u.db.WithContext(ctx).Create(video).Error; err != nil {
		if delErr := u.store.DeleteVideo(ctx, stored.Key); delErr != nil {
			logger.Log.Warn("Failed to remove orphaned video", zap.String("key", stored.Key), zap.Error(delErr))
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to record video: %w", err)
	}

	added, bonus, err := u.scoring.AwardForVideo(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}

	m.VideoUploadsTotal.WithLabelValues("ok").Inc()
	logger.Log.Info("Video uploaded",
		logger.WithAccountID(in.AccountID),
		zap.Uint("video_id", video.ID),
		zap.Int64("size_bytes", video.SizeBytes),
		zap.Int("added_score", added),
		zap.Bool("bonus_applied", bonus))

	return &UploadResult{Video: video, AddedScore: added, BonusApplied: bonus}, nil
}
