// Package progress implements the session scoring and completion reward engine.
//
// The database is the only shared state. Every state transition commits in a
// single transaction; events and notifications are emitted after commit and
// their failures are logged, never surfaced.
package progress

import (
	"context"
	"time"

	"github.com/arbmuseum/arb/backend/internal/events"
	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/arbmuseum/arb/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventSink persists audit events
type EventSink interface {
	Record(ctx context.Context, event models.ViewEvent) error
}

// Notifier delivers an issued promo code to its owner
type Notifier interface {
	NotifyReward(ctx context.Context, code string) error
}

// Catalog reports how many items a session must view to complete
type Catalog interface {
	CountItems(ctx context.Context) (int64, error)
}

// ScoreCache memoizes identity total scores
type ScoreCache interface {
	Get(ctx context.Context, userID string) (int, bool)
	Set(ctx context.Context, userID string, score int)
	Invalidate(ctx context.Context, userID string)
}

// Config holds engine tunables
type Config struct {
	FirstViewPoints  int
	MaxIssueAttempts int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{FirstViewPoints: 10, MaxIssueAttempts: 5}
}

// Engine is the progress and reward engine
type Engine struct {
	db       *gorm.DB
	cfg      Config
	sink     EventSink
	notifier Notifier
	catalog  Catalog
	cache    ScoreCache
}

// NewEngine creates an engine over db. Events go to the view_events table,
// the catalog is the assets table, and scores are not cached until
// SetScoreCache is called.
func NewEngine(db *gorm.DB, cfg Config) *Engine {
	if cfg.MaxIssueAttempts <= 0 {
		cfg.MaxIssueAttempts = DefaultConfig().MaxIssueAttempts
	}
	if cfg.FirstViewPoints < 0 {
		cfg.FirstViewPoints = 0
	}
	return &Engine{
		db:       db,
		cfg:      cfg,
		sink:     events.NewDBSink(db),
		notifier: nopNotifier{},
		catalog:  NewDBCatalog(db),
		cache:    NopScoreCache{},
	}
}

// SetEventSink replaces the event sink
func (e *Engine) SetEventSink(sink EventSink) {
	if sink != nil {
		e.sink = sink
	}
}

// SetNotifier sets the promo delivery notifier
func (e *Engine) SetNotifier(n Notifier) {
	if n != nil {
		e.notifier = n
	}
}

// SetCatalog replaces the catalog
func (e *Engine) SetCatalog(c Catalog) {
	if c != nil {
		e.catalog = c
	}
}

// SetScoreCache sets the identity score cache
func (e *Engine) SetScoreCache(c ScoreCache) {
	if c != nil {
		e.cache = c
	}
}

// FirstViewPoints returns the points awarded for a first view
func (e *Engine) FirstViewPoints() int {
	return e.cfg.FirstViewPoints
}

func (e *Engine) emit(ctx context.Context, sessionID string, assetID *uint, eventType string, payload models.JSONMap) {
	if payload == nil {
		payload = models.JSONMap{}
	}
	payload["event"] = eventType
	event := models.ViewEvent{
		SessionID:  sessionID,
		AssetID:    assetID,
		EventType:  eventType,
		RawPayload: payload,
		Processed:  true,
		Timestamp:  time.Now().UTC(),
	}
	if err := e.sink.Record(ctx, event); err != nil {
		logger.Log.Warn("Failed to record event",
			zap.String("event_type", eventType),
			logger.WithSessionID(sessionID),
			zap.Error(err))
	}
}

func observe(op string, start time.Time) {
	metrics.Get().EngineOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// DBCatalog counts catalog items in the assets table
type DBCatalog struct {
	db *gorm.DB
}

// NewDBCatalog creates a catalog over db
func NewDBCatalog(db *gorm.DB) *DBCatalog {
	return &DBCatalog{db: db}
}

func (c *DBCatalog) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&models.Asset{}).Count(&n).Error
	return n, err
}

// NopScoreCache never caches
type NopScoreCache struct{}

func (NopScoreCache) Get(context.Context, string) (int, bool) { return 0, false }
func (NopScoreCache) Set(context.Context, string, int)        {}
func (NopScoreCache) Invalidate(context.Context, string)      {}

type nopNotifier struct{}

func (nopNotifier) NotifyReward(context.Context, string) error { return nil }
