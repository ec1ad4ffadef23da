package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
	messagerepo "voicebox-backend/internal/message/repository"
	queuedomain "voicebox-backend/internal/queue/domain"
	queuerepo "voicebox-backend/internal/queue/repository"
	userdomain "voicebox-backend/internal/user/domain"
	userrepo "voicebox-backend/internal/user/repository"
	"voicebox-backend/pkg/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClassifier struct {
	result *ai.Classification
	err    error
	calls  int
	// failSubjects makes only matching subjects fail
	failSubjects string
}

func (f *fakeClassifier) Classify(ctx context.Context, input ai.ClassificationInput) (*ai.Classification, error) {
	f.calls++
	if f.err != nil && (f.failSubjects == "" || strings.Contains(input.Subject, f.failSubjects)) {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &ai.Classification{
		Category: messagedomain.CategoryUnknown,
		Action:   messagedomain.ActionMarkRead,
	}, nil
}

type fakeVoice struct {
	calls []string
	err   error
}

func (f *fakeVoice) GenerateResponse(ctx context.Context, userID, messageID, text string) (string, float64, error) {
	f.calls = append(f.calls, messageID)
	if f.err != nil {
		return "", 0, f.err
	}
	return "/api/voice/" + userID + "/" + messageID + ".mp3", 2.5, nil
}

type fakeNotifier struct {
	notified []string
}

func (f *fakeNotifier) NotifyImportant(ctx context.Context, userID string, result *messagedomain.ProcessedMessage) {
	f.notified = append(f.notified, result.MessageID)
}

type processorFixture struct {
	processor *Processor
	queue     queuerepo.QueueRepository
	processed messagerepo.ProcessedMessageRepository
	users     userrepo.UserRepository
	voice     *fakeVoice
	notifier  *fakeNotifier
}

func newFixture(t *testing.T, classifier ai.Classifier, voiceEnabled bool) *processorFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&queuedomain.QueueItem{}, &messagedomain.ProcessedMessage{}, &userdomain.User{}))

	users := userrepo.NewUserRepository(db)
	require.NoError(t, users.Create(&userdomain.User{
		ID:                    "user-1",
		Email:                 "alice@example.com",
		VoiceResponsesEnabled: voiceEnabled,
	}))

	f := &processorFixture{
		queue:     queuerepo.NewQueueRepository(db, 30*time.Second),
		processed: messagerepo.NewProcessedMessageRepository(db),
		users:     users,
		voice:     &fakeVoice{},
		notifier:  &fakeNotifier{},
	}
	f.processor = NewProcessor(f.queue, f.processed, f.users, classifier, 10)
	f.processor.SetVoiceGenerator(f.voice)
	f.processor.SetNotifier(f.notifier)
	return f
}

func (f *processorFixture) enqueue(t *testing.T, messageID, subject string) string {
	t.Helper()
	id, err := f.queue.Enqueue(&messagedomain.NormalizedMessage{
		ID:        messageID,
		Source:    messagedomain.SourceEmail,
		Sender:    "bob@example.com",
		Subject:   subject,
		Content:   "content",
		Timestamp: time.Now(),
	}, "user-1", queuedomain.EnqueueOptions{MaxRetries: 2, VisibilityDelay: time.Millisecond})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	time.Sleep(5 * time.Millisecond)
	return id
}

func TestProcessClassifiesAndCompletes(t *testing.T) {
	classifier := &fakeClassifier{result: &ai.Classification{
		Category: messagedomain.CategoryImportant,
		Action:   messagedomain.ActionGeneratePrompt,
		Summary:  "needs a reply",
		Prompt:   "Reply agreeing to the meeting",
	}}
	f := newFixture(t, classifier, true)
	itemID := f.enqueue(t, "msg-1", "meeting tomorrow")

	require.NoError(t, f.processor.Process(context.Background()))

	item, err := f.queue.FindByID(itemID)
	require.NoError(t, err)
	assert.Equal(t, queuedomain.StatusCompleted, item.Status)

	result, err := f.processed.Find("user-1", messagedomain.SourceEmail, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, messagedomain.CategoryImportant, result.Category)
	assert.Equal(t, messagedomain.ActionGeneratePrompt, result.Action)
	assert.True(t, result.RequiresVoiceResponse)

	assert.Equal(t, []string{"msg-1"}, f.voice.calls)
	assert.Equal(t, []string{"msg-1"}, f.notifier.notified)
}

func TestProcessSkipsVoiceWhenDisabled(t *testing.T) {
	classifier := &fakeClassifier{result: &ai.Classification{
		Category: messagedomain.CategoryImportant,
		Action:   messagedomain.ActionGeneratePrompt,
		Prompt:   "Reply",
	}}
	f := newFixture(t, classifier, false)
	f.enqueue(t, "msg-1", "meeting")

	require.NoError(t, f.processor.Process(context.Background()))

	result, err := f.processed.Find("user-1", messagedomain.SourceEmail, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.RequiresVoiceResponse)
	assert.Empty(t, f.voice.calls)
	// still important, still notified
	assert.Equal(t, []string{"msg-1"}, f.notifier.notified)
}

func TestProcessItemFailureDoesNotAbortBatch(t *testing.T) {
	classifier := &fakeClassifier{
		err:          errors.New("model unavailable"),
		failSubjects: "bad",
	}
	f := newFixture(t, classifier, true)
	badID := f.enqueue(t, "msg-bad", "bad subject")
	goodID := f.enqueue(t, "msg-good", "good subject")

	require.NoError(t, f.processor.Process(context.Background()))

	bad, err := f.queue.FindByID(badID)
	require.NoError(t, err)
	assert.Equal(t, queuedomain.StatusPending, bad.Status, "failed item goes back to pending for retry")
	assert.Equal(t, 1, bad.RetryCount)
	assert.Contains(t, bad.LastError, "model unavailable")

	good, err := f.queue.FindByID(goodID)
	require.NoError(t, err)
	assert.Equal(t, queuedomain.StatusCompleted, good.Status)
}

func TestProcessVoiceFailureStillCompletesItem(t *testing.T) {
	classifier := &fakeClassifier{result: &ai.Classification{
		Category: messagedomain.CategoryImportant,
		Action:   messagedomain.ActionGeneratePrompt,
		Prompt:   "Reply",
	}}
	f := newFixture(t, classifier, true)
	f.voice.err = errors.New("tts quota exceeded")
	itemID := f.enqueue(t, "msg-1", "meeting")

	require.NoError(t, f.processor.Process(context.Background()))

	item, err := f.queue.FindByID(itemID)
	require.NoError(t, err)
	assert.Equal(t, queuedomain.StatusCompleted, item.Status)

	result, err := f.processed.Find("user-1", messagedomain.SourceEmail, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestProcessSkipsItemsClaimedElsewhere(t *testing.T) {
	classifier := &fakeClassifier{}
	f := newFixture(t, classifier, true)
	itemID := f.enqueue(t, "msg-1", "subject")

	// another processor already holds the claim
	claimed, err := f.queue.Claim(itemID)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, f.processor.Process(context.Background()))
	assert.Zero(t, classifier.calls)

	item, err := f.queue.FindByID(itemID)
	require.NoError(t, err)
	assert.Equal(t, queuedomain.StatusClaimed, item.Status)
}

func TestProcessEmptyQueueIsNoOp(t *testing.T) {
	classifier := &fakeClassifier{}
	f := newFixture(t, classifier, true)

	require.NoError(t, f.processor.Process(context.Background()))
	assert.Zero(t, classifier.calls)
}
