package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is a registered user of the AR video service
type Account struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:text;not null" json:"-"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active"`
	IsAdmin      bool   `gorm:"not null;default:false" json:"is_admin"`
	Score        int    `gorm:"not null;default:0" json:"score"`

	// Set once when the first-upload bonus is granted
	FirstUploadBonusAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Videos []Video `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

// Character is an AR character a video can be recorded with
type Character struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Code   string `gorm:"size:64;uniqueIndex;not null" json:"code"`
	NameEN string `gorm:"size:128;not null" json:"name_en"`
	NameRU string `gorm:"size:128;not null" json:"name_ru"`

	Videos []Video `gorm:"foreignKey:CharacterID" json:"-"`
}

// Video is an uploaded AR recording
type Video struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	AccountID   string `gorm:"type:uuid;not null;index" json:"account_id"`
	CharacterID *uint  `gorm:"index" json:"character_id"`
	StorageKey  string `gorm:"size:512;not null" json:"path"`
	URL         string `gorm:"size:1024" json:"url,omitempty"`
	SizeBytes   int64  `gorm:"not null" json:"size_bytes"`
	ContentType string `gorm:"size:64" json:"content_type"`

	CreatedAt time.Time `json:"created_at"`
}

// ClientLog is a log line reported by the AR client
type ClientLog struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	AccountID *string `gorm:"type:uuid;index" json:"account_id,omitempty"`
	Level     string  `gorm:"size:32;not null;index" json:"level"`
	Message   string  `gorm:"type:text;not null" json:"message"`
	Context   *string `gorm:"type:text" json:"context"`
	Locale    string  `gorm:"size:16" json:"locale,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = generateUUID()
	}
	return nil
}
