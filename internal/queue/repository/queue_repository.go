package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
	queuedomain "voicebox-backend/internal/queue/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueueRepository defines the interface for the durable work queue.
// The queue is the single source of truth for "should this message be
// processed"; all mutation goes through the status transitions below.
type QueueRepository interface {
	// Enqueue inserts a new pending item for the message and returns its id.
	// A message already queued for the same (user, source, message) pair is
	// swallowed as a no-op and the empty id is returned.
	Enqueue(msg *messagedomain.NormalizedMessage, userID string, opts queuedomain.EnqueueOptions) (string, error)
	// SelectBatch returns up to limit pending, visible items ordered by
	// priority descending then creation time ascending
	SelectBatch(limit int) ([]*queuedomain.QueueItem, error)
	// Claim atomically moves a pending item to claimed. Returns false when
	// another processor won the race.
	Claim(id string) (bool, error)
	MarkCompleted(id string) error
	// MarkFailed records the error. An item that has retries left is put
	// back to pending with a fresh visibility delay; otherwise it goes
	// terminal failed.
	MarkFailed(id string, errMsg string) error
	Cancel(id string) error
	FindByID(id string) (*queuedomain.QueueItem, error)
	Recent(userID string, limit int) ([]*queuedomain.QueueItem, error)
}

// queueRepository implements QueueRepository interface
type queueRepository struct {
	db         *gorm.DB
	retryDelay time.Duration
}

// NewQueueRepository creates a new instance of queueRepository.
// retryDelay spaces out re-enqueued items after a failure.
func NewQueueRepository(db *gorm.DB, retryDelay time.Duration) QueueRepository {
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return &queueRepository{
		db:         db,
		retryDelay: retryDelay,
	}
}

func (r *queueRepository) Enqueue(msg *messagedomain.NormalizedMessage, userID string, opts queuedomain.EnqueueOptions) (string, error) {
	if !msg.Source.IsValid() {
		return "", fmt.Errorf("enqueue: invalid source %q", msg.Source)
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.VisibilityDelay <= 0 {
		opts.VisibilityDelay = 30 * time.Second
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("enqueue: failed to serialize message: %w", err)
	}

	now := time.Now()
	item := queuedomain.QueueItem{
		ID:           uuid.New().String(),
		UserID:       userID,
		MessageID:    msg.ID,
		Source:       msg.Source,
		Priority:     opts.Priority,
		Status:       queuedomain.StatusPending,
		MaxRetries:   opts.MaxRetries,
		VisibleAfter: now.Add(opts.VisibilityDelay),
		Payload:      payload,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique index on (user_id, source, message_id) is the duplicate
	// guard; a second enqueue for the same message is a no-op
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&item)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", nil
	}
	return item.ID, nil
}

func (r *queueRepository) SelectBatch(limit int) ([]*queuedomain.QueueItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var items []*queuedomain.QueueItem
	err := r.db.
		Where("status = ? AND visible_after <= ?", queuedomain.StatusPending, time.Now()).
		Order("priority DESC, created_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *queueRepository) Claim(id string) (bool, error) {
	result := r.db.Model(&queuedomain.QueueItem{}).
		Where("id = ? AND status = ?", id, queuedomain.StatusPending).
		Updates(map[string]interface{}{
			"status":     queuedomain.StatusClaimed,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *queueRepository) MarkCompleted(id string) error {
	result := r.db.Model(&queuedomain.QueueItem{}).
		Where("id = ? AND status IN ?", id, []queuedomain.Status{queuedomain.StatusClaimed, queuedomain.StatusPending}).
		Updates(map[string]interface{}{
			"status":     queuedomain.StatusCompleted,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("mark completed %s: %w", id, queuedomain.ErrQueueIntegrity)
	}
	return nil
}

func (r *queueRepository) MarkFailed(id string, errMsg string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Only the claim holder calls MarkFailed, so a plain read inside
		// the transaction is race-free
		var item queuedomain.QueueItem
		if err := tx.Where("id = ?", id).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("mark failed %s: %w", id, queuedomain.ErrQueueIntegrity)
			}
			return err
		}
		if item.Status.IsTerminal() {
			return fmt.Errorf("mark failed %s (status %s): %w", id, item.Status, queuedomain.ErrQueueIntegrity)
		}

		updates := map[string]interface{}{
			"last_error":  errMsg,
			"retry_count": item.RetryCount + 1,
			"updated_at":  time.Now(),
		}
		if item.RetryCount+1 < item.MaxRetries {
			updates["status"] = queuedomain.StatusPending
			updates["visible_after"] = time.Now().Add(r.retryDelay)
		} else {
			updates["status"] = queuedomain.StatusFailed
		}
		return tx.Model(&queuedomain.QueueItem{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (r *queueRepository) Cancel(id string) error {
	result := r.db.Model(&queuedomain.QueueItem{}).
		Where("id = ? AND status = ?", id, queuedomain.StatusPending).
		Updates(map[string]interface{}{
			"status":     queuedomain.StatusCancelled,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("cancel %s: %w", id, queuedomain.ErrQueueIntegrity)
	}
	return nil
}

func (r *queueRepository) FindByID(id string) (*queuedomain.QueueItem, error) {
	var item queuedomain.QueueItem
	err := r.db.Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *queueRepository) Recent(userID string, limit int) ([]*queuedomain.QueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []*queuedomain.QueueItem
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
