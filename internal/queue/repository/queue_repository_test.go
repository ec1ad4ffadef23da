package repository

import (
	"testing"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
	queuedomain "voicebox-backend/internal/queue/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) QueueRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&queuedomain.QueueItem{}))
	return NewQueueRepository(db, 30*time.Second)
}

func testMessage(id string) *messagedomain.NormalizedMessage {
	return &messagedomain.NormalizedMessage{
		ID:        id,
		Source:    messagedomain.SourceEmail,
		Sender:    "alice@example.com",
		Subject:   "hello",
		Content:   "body",
		Timestamp: time.Now(),
	}
}

// visibleNow makes the item selectable without waiting out the default delay
func visibleNow() queuedomain.EnqueueOptions {
	return queuedomain.EnqueueOptions{
		Priority:        0,
		MaxRetries:      3,
		VisibilityDelay: time.Millisecond,
	}
}

func TestEnqueueDuplicateIsNoOp(t *testing.T) {
	repo := newTestRepo(t)

	id, err := repo.Enqueue(testMessage("msg-1"), "user-1", visibleNow())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	dup, err := repo.Enqueue(testMessage("msg-1"), "user-1", visibleNow())
	require.NoError(t, err)
	assert.Empty(t, dup, "second enqueue of the same message must be swallowed")

	// same message id for a different user is a distinct item
	other, err := repo.Enqueue(testMessage("msg-1"), "user-2", visibleNow())
	require.NoError(t, err)
	assert.NotEmpty(t, other)
}

func TestEnqueueRejectsUnknownSource(t *testing.T) {
	repo := newTestRepo(t)

	msg := testMessage("msg-1")
	msg.Source = "carrier-pigeon"
	_, err := repo.Enqueue(msg, "user-1", visibleNow())
	assert.Error(t, err)
}

func TestSelectBatchOrdersByPriorityThenAge(t *testing.T) {
	repo := newTestRepo(t)

	low := visibleNow()
	high := visibleNow()
	high.Priority = 5

	_, err := repo.Enqueue(testMessage("low"), "user-1", low)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = repo.Enqueue(testMessage("high-old"), "user-1", high)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = repo.Enqueue(testMessage("high-new"), "user-1", high)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	batch, err := repo.SelectBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	assert.Equal(t, "high-old", batch[0].MessageID)
	assert.Equal(t, "high-new", batch[1].MessageID)
	assert.Equal(t, "low", batch[2].MessageID)
}

func TestSelectBatchHonorsVisibilityDelay(t *testing.T) {
	repo := newTestRepo(t)

	delayed := visibleNow()
	delayed.VisibilityDelay = time.Hour
	_, err := repo.Enqueue(testMessage("later"), "user-1", delayed)
	require.NoError(t, err)
	_, err = repo.Enqueue(testMessage("now"), "user-1", visibleNow())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	batch, err := repo.SelectBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "now", batch[0].MessageID)
}

func TestClaimIsExclusive(t *testing.T) {
	repo := newTestRepo(t)

	id, err := repo.Enqueue(testMessage("msg-1"), "user-1", visibleNow())
	require.NoError(t, err)

	claimed, err := repo.Claim(id)
	require.NoError(t, err)
	assert.True(t, claimed)

	again, err := repo.Claim(id)
	require.NoError(t, err)
	assert.False(t, again, "second claim must lose the race")

	item, err := repo.FindByID(id)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, queuedomain.StatusClaimed, item.Status)
}

func TestMarkCompleted(t *testing.T) {
	repo := newTestRepo(t)

	id, err := repo.Enqueue(testMessage("msg-1"), "user-1", visibleNow())
	require.NoError(t, err)
	_, err = repo.Claim(id)
	require.NoError(t, err)

	require.NoError(t, repo.MarkCompleted(id))

	item, err := repo.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, queuedomain.StatusCompleted, item.Status)

	// completing a terminal item is an integrity violation
	err = repo.MarkCompleted(id)
	assert.ErrorIs(t, err, queuedomain.ErrQueueIntegrity)
}

func TestMarkFailedRetriesThenGoesTerminal(t *testing.T) {
	repo := newTestRepo(t)

	opts := visibleNow()
	opts.MaxRetries = 2
	id, err := repo.Enqueue(testMessage("msg-1"), "user-1", opts)
	require.NoError(t, err)

	_, err = repo.Claim(id)
	require.NoError(t, err)

	// first failure re-enqueues with a fresh visibility delay
	require.NoError(t, repo.MarkFailed(id, "classifier timeout"))
	item, err := repo.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, queuedomain.StatusPending, item.Status)
	assert.Equal(t, 1, item.RetryCount)
	assert.Equal(t, "classifier timeout", item.LastError)
	assert.True(t, item.VisibleAfter.After(time.Now()), "retried item must wait out the retry delay")

	// retry delay keeps the item out of the next batch
	batch, err := repo.SelectBatch(10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	// second failure exhausts retries
	_, err = repo.Claim(id)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(id, "classifier timeout"))
	item, err = repo.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, queuedomain.StatusFailed, item.Status)
	assert.Equal(t, 2, item.RetryCount)

	// failing a terminal item is an integrity violation
	err = repo.MarkFailed(id, "again")
	assert.ErrorIs(t, err, queuedomain.ErrQueueIntegrity)
}

func TestCancelOnlyPending(t *testing.T) {
	repo := newTestRepo(t)

	id, err := repo.Enqueue(testMessage("msg-1"), "user-1", visibleNow())
	require.NoError(t, err)
	require.NoError(t, repo.Cancel(id))

	item, err := repo.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, queuedomain.StatusCancelled, item.Status)

	err = repo.Cancel(id)
	assert.ErrorIs(t, err, queuedomain.ErrQueueIntegrity)
}

func TestFindByIDMissingReturnsNil(t *testing.T) {
	repo := newTestRepo(t)

	item, err := repo.FindByID("nope")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestRecentIsScopedToUser(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Enqueue(testMessage("a"), "user-1", visibleNow())
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = repo.Enqueue(testMessage("b"), "user-1", visibleNow())
	require.NoError(t, err)
	_, err = repo.Enqueue(testMessage("c"), "user-2", visibleNow())
	require.NoError(t, err)

	items, err := repo.Recent("user-1", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].MessageID, "newest first")
	assert.Equal(t, "a", items[1].MessageID)
}
