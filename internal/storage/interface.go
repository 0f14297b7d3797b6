package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/arbmuseum/arb/backend/internal/util"
	"github.com/google/uuid"
)

// VideoStore persists uploaded AR videos
type VideoStore interface {
	SaveVideo(ctx context.Context, data []byte, accountID, filename, contentType string) (*UploadResult, error)
	DeleteVideo(ctx context.Context, key string) error
}

// UploadResult contains the result of a stored upload
type UploadResult struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Bucket string `json:"bucket,omitempty"`
	Size   int64  `json:"size"`
}

// videoKey lays out videos as videos/{year}/{month}/{accountID}/{uuid}{ext}
func videoKey(now time.Time, accountID, filename, contentType string) string {
	return fmt.Sprintf("videos/%d/%02d/%s/%s%s",
		now.Year(), now.Month(), accountID, uuid.New().String(), util.ExtensionFor(filename, contentType))
}

var (
	_ VideoStore = (*S3VideoStore)(nil)
	_ VideoStore = (*LocalVideoStore)(nil)
)
