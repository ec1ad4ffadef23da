package domain

import (
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
)

type User struct {
	ID                    string    `json:"id" gorm:"primaryKey"`
	Email                 string    `json:"email" gorm:"uniqueIndex;not null"`
	Name                  string    `json:"name"`
	VoiceResponsesEnabled bool      `json:"voice_responses_enabled" gorm:"default:false"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Connection holds the stored credentials for one (user, source) pair.
// Access/refresh tokens are issued by the auth layer; this pipeline only
// reads them. A missing row means the user never connected that source.
type Connection struct {
	ID           string               `json:"id" gorm:"primaryKey"`
	UserID       string               `json:"user_id" gorm:"uniqueIndex:idx_connection_owner_source;index;not null"`
	Source       messagedomain.Source `json:"source" gorm:"uniqueIndex:idx_connection_owner_source;not null"`
	Provider     string               `json:"provider"` // "google", "imap", "slack", "msgraph"
	AccessToken  string               `json:"-"`
	RefreshToken string               `json:"-"`
	IMAPHost     string               `json:"imap_host,omitempty"`
	IMAPUsername string               `json:"imap_username,omitempty"`
	IMAPPassword string               `json:"-"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

type FCMToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (FCMToken) TableName() string {
	return "fcm_tokens"
}
