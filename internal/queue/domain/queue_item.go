package domain

import (
	"errors"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
)

// ErrQueueIntegrity is returned on an unexpected status transition,
// e.g. completing an item that is not claimed
var ErrQueueIntegrity = errors.New("queue: unexpected status transition")

// Status is the lifecycle state of a queue item
type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// QueueItem is one unit of durable work. Items are never deleted in normal
// operation; terminal rows stay behind as an append-only ledger.
type QueueItem struct {
	ID           string               `json:"id" gorm:"primaryKey"`
	UserID       string               `json:"user_id" gorm:"uniqueIndex:idx_queue_owner_message;index;not null"`
	MessageID    string               `json:"message_id" gorm:"uniqueIndex:idx_queue_owner_message;not null"`
	Source       messagedomain.Source `json:"source" gorm:"uniqueIndex:idx_queue_owner_message;not null"`
	Priority     int                  `json:"priority" gorm:"not null;default:0;index"`
	Status       Status               `json:"status" gorm:"size:16;not null;default:'pending';index"`
	RetryCount   int                  `json:"retry_count" gorm:"not null;default:0"`
	MaxRetries   int                  `json:"max_retries" gorm:"not null;default:3"`
	VisibleAfter time.Time            `json:"visible_after" gorm:"index;not null"`
	Payload      []byte               `json:"payload" gorm:"type:text;not null"` // serialized NormalizedMessage
	LastError    string               `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (QueueItem) TableName() string {
	return "queue_items"
}

// EnqueueOptions controls how a message is enqueued
type EnqueueOptions struct {
	Priority        int
	MaxRetries      int
	VisibilityDelay time.Duration
}

// DefaultEnqueueOptions returns the standard enqueue settings
func DefaultEnqueueOptions() EnqueueOptions {
	return EnqueueOptions{
		Priority:        0,
		MaxRetries:      3,
		VisibilityDelay: 30 * time.Second,
	}
}
