package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
	messagerepo "voicebox-backend/internal/message/repository"
	queuedomain "voicebox-backend/internal/queue/domain"
	queuerepo "voicebox-backend/internal/queue/repository"
	userrepo "voicebox-backend/internal/user/repository"
	"voicebox-backend/internal/worker"
	"voicebox-backend/pkg/ai"
	"voicebox-backend/pkg/sse"
)

// VoiceGenerator synthesizes and stores a spoken response for a message
type VoiceGenerator interface {
	GenerateResponse(ctx context.Context, userID, messageID, text string) (audioURL string, duration float64, err error)
}

// Notifier pushes a heads-up about an important message to the owner's
// devices; failures are the notifier's problem, never the processor's
type Notifier interface {
	NotifyImportant(ctx context.Context, userID string, result *messagedomain.ProcessedMessage)
}

// Processor dequeues pending items and runs them through classification.
// Multiple processors can share one queue: the claim transition keeps
// two of them from servicing the same item.
type Processor struct {
	queue      queuerepo.QueueRepository
	processed  messagerepo.ProcessedMessageRepository
	users      userrepo.UserRepository
	classifier ai.Classifier
	voice      VoiceGenerator
	notifier   Notifier
	sse        *sse.Manager
	batchSize  int
}

// NewProcessor creates a queue processor
func NewProcessor(
	queue queuerepo.QueueRepository,
	processed messagerepo.ProcessedMessageRepository,
	users userrepo.UserRepository,
	classifier ai.Classifier,
	batchSize int,
) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Processor{
		queue:      queue,
		processed:  processed,
		users:      users,
		classifier: classifier,
		batchSize:  batchSize,
	}
}

// SetVoiceGenerator enables best-effort voice responses
func (p *Processor) SetVoiceGenerator(v VoiceGenerator) {
	p.voice = v
}

// SetNotifier enables push notifications for important messages
func (p *Processor) SetNotifier(n Notifier) {
	p.notifier = n
}

// SetSSEManager enables live processing events
func (p *Processor) SetSSEManager(m *sse.Manager) {
	p.sse = m
}

// NewWorker wraps the processor in a lifecycle-managed worker
func (p *Processor) NewWorker(opts worker.Options) *worker.Worker {
	return worker.New("queue-processor", p.Process, opts)
}

// Process drains one batch. Item-level failures are recorded on the item
// and never abort the loop; only batch selection errors propagate.
func (p *Processor) Process(ctx context.Context) error {
	items, err := p.queue.SelectBatch(p.batchSize)
	if err != nil {
		return fmt.Errorf("select batch: %w", err)
	}

	for _, item := range items {
		claimed, err := p.queue.Claim(item.ID)
		if err != nil {
			log.Printf("[QueueProcessor] Claim %s failed: %v", item.ID, err)
			continue
		}
		if !claimed {
			continue // another processor won the race
		}

		if err := p.processItem(ctx, item); err != nil {
			log.Printf("[QueueProcessor] Item %s failed: %v", item.ID, err)
			if markErr := p.queue.MarkFailed(item.ID, err.Error()); markErr != nil {
				log.Printf("[QueueProcessor] Mark failed %s: %v", item.ID, markErr)
			}
			continue
		}

		if err := p.queue.MarkCompleted(item.ID); err != nil {
			log.Printf("[QueueProcessor] Mark completed %s: %v", item.ID, err)
		}
	}
	return nil
}

// processItem classifies one claimed item and persists the result.
// Steps 1-4 are required; the voice response is best-effort.
func (p *Processor) processItem(ctx context.Context, item *queuedomain.QueueItem) error {
	var msg messagedomain.NormalizedMessage
	if err := json.Unmarshal(item.Payload, &msg); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	voiceEnabled, err := p.users.VoiceEnabled(item.UserID)
	if err != nil {
		return fmt.Errorf("load voice flag: %w", err)
	}

	classification, err := p.classifier.Classify(ctx, ai.ClassificationInput{
		Subject: msg.Subject,
		Content: msg.Content,
		Sender:  msg.Sender,
	})
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	result := &messagedomain.ProcessedMessage{
		UserID:                item.UserID,
		MessageID:             item.MessageID,
		Source:                item.Source,
		Category:              classification.Category,
		Action:                classification.Action,
		Summary:               classification.Summary,
		Prompt:                classification.Prompt,
		RequiresVoiceResponse: classification.Action == messagedomain.ActionGeneratePrompt && voiceEnabled,
		ProcessedAt:           time.Now(),
	}

	if err := p.processed.Save(result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	if result.RequiresVoiceResponse && p.voice != nil {
		audioURL, duration, err := p.voice.GenerateResponse(ctx, item.UserID, item.MessageID, classification.Prompt)
		if err != nil {
			// Voice is best-effort; the item still counts as processed
			log.Printf("[QueueProcessor] Voice response for %s failed: %v", item.MessageID, err)
		} else if p.sse != nil {
			p.sse.SendToUser(item.UserID, "voice_ready", map[string]interface{}{
				"message_id": item.MessageID,
				"audio_url":  audioURL,
				"duration":   duration,
			})
		}
	}

	if result.Category == messagedomain.CategoryImportant && p.notifier != nil {
		p.notifier.NotifyImportant(ctx, item.UserID, result)
	}

	if p.sse != nil {
		p.sse.SendToUser(item.UserID, "message_processed", map[string]interface{}{
			"message_id": item.MessageID,
			"source":     item.Source,
			"category":   result.Category,
			"action":     result.Action,
		})
	}
	return nil
}
