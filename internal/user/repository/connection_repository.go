package repository

import (
	"errors"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
	userdomain "voicebox-backend/internal/user/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionRepository defines the interface for stored source credentials
type ConnectionRepository interface {
	// Find returns the connection for a (user, source) pair, or nil when
	// the user never connected that source
	Find(userID string, source messagedomain.Source) (*userdomain.Connection, error)
	FindByUser(userID string) ([]*userdomain.Connection, error)
	Save(conn *userdomain.Connection) error
	UpdateTokens(id, accessToken, refreshToken string) error
	Delete(userID string, source messagedomain.Source) error
}

// connectionRepository implements ConnectionRepository interface
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new instance of connectionRepository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{
		db: db,
	}
}

func (r *connectionRepository) Find(userID string, source messagedomain.Source) (*userdomain.Connection, error) {
	var conn userdomain.Connection
	err := r.db.Where("user_id = ? AND source = ?", userID, source).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindByUser(userID string) ([]*userdomain.Connection, error) {
	var conns []*userdomain.Connection
	if err := r.db.Where("user_id = ?", userID).Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *connectionRepository) Save(conn *userdomain.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
		conn.CreatedAt = time.Now()
	}
	conn.UpdatedAt = time.Now()
	return r.db.Save(conn).Error
}

func (r *connectionRepository) UpdateTokens(id, accessToken, refreshToken string) error {
	return r.db.Model(&userdomain.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"updated_at":    time.Now(),
		}).Error
}

func (r *connectionRepository) Delete(userID string, source messagedomain.Source) error {
	return r.db.Where("user_id = ? AND source = ?", userID, source).Delete(&userdomain.Connection{}).Error
}
