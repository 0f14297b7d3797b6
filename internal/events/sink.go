package events

import (
	"context"
	"fmt"
	"time"

	"github.com/arbmuseum/arb/backend/internal/models"
	"gorm.io/gorm"
)

// DBSink appends view events to the view_events table
type DBSink struct {
	db *gorm.DB
}

// NewDBSink creates a sink writing through db
func NewDBSink(db *gorm.DB) *DBSink {
	return &DBSink{db: db}
}

// Record appends one event. Events are never updated after this.
func (s *DBSink) Record(ctx context.Context, event models.ViewEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record %s event: %w", event.EventType, err)
	}
	return nil
}

// ForSession lists a session's events in chronological order
func (s *DBSink) ForSession(ctx context.Context, sessionID string, limit int) ([]models.ViewEvent, error) {
	var out []models.ViewEvent
	q := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("timestamp ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return out, nil
}

// CountByType counts events of one type, optionally for one session
func (s *DBSink) CountByType(ctx context.Context, eventType, sessionID string) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&models.ViewEvent{}).Where("event_type = ?", eventType)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
