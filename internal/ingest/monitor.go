package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"voicebox-backend/internal/ingest/adapter"
	messagedomain "voicebox-backend/internal/message/domain"
	queuedomain "voicebox-backend/internal/queue/domain"
	queuerepo "voicebox-backend/internal/queue/repository"
	"voicebox-backend/internal/worker"
	"voicebox-backend/pkg/sse"
)

// AdapterFactory builds the adapter for a (user, source) pair
type AdapterFactory interface {
	New(userID string, source messagedomain.Source) (adapter.SourceAdapter, error)
}

// Monitor polls every connected source for one user and enqueues the
// fetched messages. One Monitor per user; each runs its own worker loop.
type Monitor struct {
	userID   string
	factory  AdapterFactory
	queue    queuerepo.QueueRepository
	sse      *sse.Manager
	adapters map[messagedomain.Source]adapter.SourceAdapter
}

// NewMonitor creates a monitor for one user
func NewMonitor(userID string, factory AdapterFactory, queue queuerepo.QueueRepository, sseManager *sse.Manager) *Monitor {
	return &Monitor{
		userID:   userID,
		factory:  factory,
		queue:    queue,
		sse:      sseManager,
		adapters: make(map[messagedomain.Source]adapter.SourceAdapter),
	}
}

// WorkerName is the registry name for a user's monitor worker
func WorkerName(userID string) string {
	return "monitor:" + userID
}

// NewWorker wraps the monitor in a lifecycle-managed worker
func (m *Monitor) NewWorker(opts worker.Options) *worker.Worker {
	return worker.New(WorkerName(m.userID), m.Process, opts)
}

// Process is one poll tick: attach adapters for any source not yet
// attached, then fetch and enqueue from each. A failure from any adapter
// aborts the remaining adapters for this tick and propagates to the
// worker's failure counter.
func (m *Monitor) Process(ctx context.Context) error {
	if err := m.attachAdapters(ctx); err != nil {
		return err
	}

	for _, source := range messagedomain.AllSources() {
		a, ok := m.adapters[source]
		if !ok {
			continue
		}
		if err := m.pollAdapter(ctx, a); err != nil {
			return fmt.Errorf("source %s: %w", source, err)
		}
	}
	return nil
}

// attachAdapters builds one adapter per source the user has a stored
// connection for. A source without a connection is skipped, not an
// error; a source whose attach fails is retried on the next tick while
// the already-attached ones keep running.
func (m *Monitor) attachAdapters(ctx context.Context) error {
	for _, source := range messagedomain.AllSources() {
		if _, ok := m.adapters[source]; ok {
			continue
		}
		a, err := m.factory.New(m.userID, source)
		if err != nil {
			return err
		}
		if err := a.Connect(ctx); err != nil {
			if errors.Is(err, adapter.ErrCredentialsNotFound) {
				continue
			}
			return err
		}
		m.adapters[source] = a
		log.Printf("[Monitor] User %s: attached %s adapter", m.userID, source)
	}
	return nil
}

func (m *Monitor) pollAdapter(ctx context.Context, a adapter.SourceAdapter) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}

	messages, err := a.FetchMessages(ctx, nil)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, msg := range messages {
		id, err := m.queue.Enqueue(msg, m.userID, queuedomain.DefaultEnqueueOptions())
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", msg.ID, err)
		}
		if id == "" {
			continue // already queued
		}
		enqueued++
		if m.sse != nil {
			m.sse.SendToUser(m.userID, "message_queued", map[string]interface{}{
				"queue_id":   id,
				"message_id": msg.ID,
				"source":     msg.Source,
			})
		}
	}
	if enqueued > 0 {
		log.Printf("[Monitor] User %s: enqueued %d messages from %s", m.userID, enqueued, a.Source())
	}
	return nil
}
