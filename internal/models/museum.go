package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event types written to view_events
const (
	EventSessionStarted   = "session_started"
	EventViewedItem       = "viewed_item"
	EventFirstViewAwarded = "first_view_awarded"
	EventEmailSubmitted   = "email_submitted"
	EventIdentityRelinked = "identity_relinked"
	EventProgressViewed   = "progress_viewed"
	EventRewardIssued     = "reward_issued"
	EventRewardChecked    = "promo_checked"
	EventRewardSent       = "reward_sent"
	EventRewardConsumed   = "reward_consumed"
)

// User is a durable visitor identity keyed by email.
// TotalScore is derived from item progress across all of the user's sessions
// and is recomputed, never incremented.
type User struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	Email      string     `gorm:"uniqueIndex;not null" json:"email"`
	IsVerified bool       `gorm:"not null;default:false;index:idx_users_verified_created,priority:1" json:"is_verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	TotalScore int        `gorm:"not null;default:0" json:"total_score"`
	Metadata   JSONMap    `gorm:"type:jsonb" json:"metadata"`

	CreatedAt time.Time `gorm:"index:idx_users_verified_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Sessions []Session `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
}

// Session is an anonymous (or later identified) museum visit
type Session struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Score        int     `gorm:"not null;default:0" json:"score"`
	PendingEmail *string `json:"pending_email,omitempty"`
	IsActive     bool    `gorm:"not null;default:true;index:idx_sessions_active_last_seen,priority:1" json:"is_active"`
	Metadata     JSONMap `gorm:"type:jsonb" json:"metadata"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	LastSeen  time.Time `gorm:"not null;index:idx_sessions_active_last_seen,priority:2" json:"last_seen"`

	ItemProgress []ItemProgress `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
	Events       []ViewEvent    `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// Asset is a catalog exhibit. Viewing it is the unit of engagement.
type Asset struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Slug     string  `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Name     string  `gorm:"size:255;not null" json:"name"`
	Type     string  `gorm:"size:50;not null;index:idx_assets_campaign_type,priority:2" json:"type"`
	Campaign string  `gorm:"size:100;not null;default:default;index:idx_assets_campaign_type,priority:1" json:"campaign"`
	Meta     JSONMap `gorm:"type:jsonb" json:"meta"`

	CreatedAt time.Time `json:"created_at"`

	Progress []ItemProgress `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"-"`
	Events   []ViewEvent    `gorm:"foreignKey:AssetID;constraint:OnDelete:SET NULL" json:"-"`
}

// ItemProgress tracks how often a session viewed an asset.
// One row per (session, asset); ViewedAt is set on the first view and never changes.
type ItemProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SessionID   string     `gorm:"type:uuid;not null;uniqueIndex:idx_item_progress_session_asset,priority:1" json:"session_id"`
	AssetID     uint       `gorm:"not null;uniqueIndex:idx_item_progress_session_asset,priority:2;index" json:"asset_id"`
	ViewedAt    *time.Time `json:"viewed_at,omitempty"`
	TimesViewed int        `gorm:"not null;default:0" json:"times_viewed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the progress table name singular
func (ItemProgress) TableName() string {
	return "item_progress"
}

// ViewEvent is an append-only audit record of a state transition
type ViewEvent struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	SessionID  string  `gorm:"type:uuid;not null;index:idx_view_events_session_ts,priority:1" json:"session_id"`
	AssetID    *uint   `gorm:"index" json:"asset_id,omitempty"`
	EventType  string  `gorm:"size:50;not null;index" json:"event_type"`
	RawPayload JSONMap `gorm:"type:jsonb" json:"raw_payload"`
	Processed  bool    `gorm:"not null;default:true" json:"processed"`

	Timestamp time.Time `gorm:"not null;index:idx_view_events_session_ts,priority:2" json:"timestamp"`
}

// PromoCode is the completion reward. A session holds at most one unused code;
// this is enforced by a partial unique index created in database.Migrate.
type PromoCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Code      string     `gorm:"size:128;uniqueIndex;not null" json:"code"`
	SessionID *string    `gorm:"type:uuid;index" json:"session_id,omitempty"`
	UserID    *string    `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Email     *string    `gorm:"index" json:"email,omitempty"`
	IssuedAt  *time.Time `gorm:"index" json:"issued_at,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	UsedAt    *time.Time `gorm:"index" json:"used_at,omitempty"`
	Meta      JSONMap    `gorm:"type:jsonb" json:"meta"`

	CreatedAt time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateUUID()
	}
	if s.LastSeen.IsZero() {
		s.LastSeen = time.Now().UTC()
	}
	return nil
}

func (e *ViewEvent) BeforeCreate(tx *gorm.DB) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return nil
}

func generateUUID() string {
	return uuid.New().String()
}
