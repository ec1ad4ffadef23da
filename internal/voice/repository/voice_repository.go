package repository

import (
	"errors"

	voicedomain "voicebox-backend/internal/voice/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoiceResponseRepository defines the interface for synthesized audio records
type VoiceResponseRepository interface {
	Save(response *voicedomain.VoiceResponse) error
	Find(userID, messageID string) (*voicedomain.VoiceResponse, error)
}

// voiceResponseRepository implements VoiceResponseRepository interface
type voiceResponseRepository struct {
	db *gorm.DB
}

// NewVoiceResponseRepository creates a new instance of voiceResponseRepository
func NewVoiceResponseRepository(db *gorm.DB) VoiceResponseRepository {
	return &voiceResponseRepository{
		db: db,
	}
}

func (r *voiceResponseRepository) Save(response *voicedomain.VoiceResponse) error {
	if response.ID == "" {
		response.ID = uuid.New().String()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"audio_url", "duration_seconds"}),
	}).Create(response).Error
}

func (r *voiceResponseRepository) Find(userID, messageID string) (*voicedomain.VoiceResponse, error) {
	var response voicedomain.VoiceResponse
	err := r.db.Where("user_id = ? AND message_id = ?", userID, messageID).First(&response).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &response, nil
}
