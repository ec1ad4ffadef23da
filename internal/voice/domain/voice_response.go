package domain

import "time"

// VoiceResponse maps a processed message to its synthesized audio
type VoiceResponse struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"uniqueIndex:idx_voice_owner_message;not null"`
	MessageID       string    `json:"message_id" gorm:"uniqueIndex:idx_voice_owner_message;not null"`
	AudioURL        string    `json:"audio_url" gorm:"not null"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (VoiceResponse) TableName() string {
	return "voice_responses"
}
