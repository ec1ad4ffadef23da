package repository

import (
	"errors"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedMessageRepository defines the interface for classification results
type ProcessedMessageRepository interface {
	// Save upserts the result keyed by (user, source, message), so
	// re-processing the same message never creates a second row
	Save(result *messagedomain.ProcessedMessage) error
	Find(userID string, source messagedomain.Source, messageID string) (*messagedomain.ProcessedMessage, error)
	FindByUser(userID string, limit int) ([]*messagedomain.ProcessedMessage, error)
}

// processedMessageRepository implements ProcessedMessageRepository interface
type processedMessageRepository struct {
	db *gorm.DB
}

// NewProcessedMessageRepository creates a new instance of processedMessageRepository
func NewProcessedMessageRepository(db *gorm.DB) ProcessedMessageRepository {
	return &processedMessageRepository{
		db: db,
	}
}

func (r *processedMessageRepository) Save(result *messagedomain.ProcessedMessage) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.ProcessedAt.IsZero() {
		result.ProcessedAt = time.Now()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "message_id"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category", "action", "summary", "prompt", "requires_voice_response", "processed_at",
		}),
	}).Create(result).Error
}

func (r *processedMessageRepository) Find(userID string, source messagedomain.Source, messageID string) (*messagedomain.ProcessedMessage, error) {
	var result messagedomain.ProcessedMessage
	err := r.db.Where("user_id = ? AND source = ? AND message_id = ?", userID, source, messageID).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *processedMessageRepository) FindByUser(userID string, limit int) ([]*messagedomain.ProcessedMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var results []*messagedomain.ProcessedMessage
	err := r.db.Where("user_id = ?", userID).
		Order("processed_at DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
