package repository

import (
	"time"

	userdomain "voicebox-backend/internal/user/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FCMTokenRepository defines the interface for device push token operations
type FCMTokenRepository interface {
	Register(userID, token string) error
	GetTokensByUserID(userID string) ([]userdomain.FCMToken, error)
	DeleteToken(token string) error
}

// fcmTokenRepository implements FCMTokenRepository interface
type fcmTokenRepository struct {
	db *gorm.DB
}

// NewFCMTokenRepository creates a new instance of fcmTokenRepository
func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{
		db: db,
	}
}

func (r *fcmTokenRepository) Register(userID, token string) error {
	record := userdomain.FCMToken{
		Token:     token,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	// Re-registering an existing token just refreshes its owner
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "created_at"}),
	}).Create(&record).Error
}

func (r *fcmTokenRepository) GetTokensByUserID(userID string) ([]userdomain.FCMToken, error) {
	var tokens []userdomain.FCMToken
	if err := r.db.Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *fcmTokenRepository) DeleteToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&userdomain.FCMToken{}).Error
}
