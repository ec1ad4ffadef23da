package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"voicebox-backend/internal/ingest/adapter"
	messagedomain "voicebox-backend/internal/message/domain"
	queuedomain "voicebox-backend/internal/queue/domain"
	queuerepo "voicebox-backend/internal/queue/repository"
	userrepo "voicebox-backend/internal/user/repository"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on the Pub/Sub topic
// when a watched mailbox changes
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service consumes Gmail push notifications from Pub/Sub and enqueues the
// new mail, an ingestion path beside the polling monitors
type Service struct {
	pubsubClient *pubsub.Client
	userRepo     userrepo.UserRepository
	factory      *adapter.Factory
	queue        queuerepo.QueueRepository
	topicName    string
	subName      string

	// Deduplication: track last historyId per user to avoid reprocessing
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

// NewService creates the push ingestion service
func NewService(projectID, topicName string, userRepo userrepo.UserRepository, factory *adapter.Factory, queue queuerepo.QueueRepository, credentialsFile string) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Service{
		pubsubClient:  client,
		userRepo:      userRepo,
		factory:       factory,
		queue:         queue,
		topicName:     topicName,
		subName:       topicName + "-sub", // Convention: topic-sub
		lastHistoryID: make(map[string]uint64),
	}, nil
}

// Start subscribes and blocks receiving messages until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting push ingestion with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, push ingestion disabled", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notif GmailNotification
	if err := json.Unmarshal(msg.Data, &notif); err != nil {
		log.Printf("[PubSub] Malformed notification, dropping: %v", err)
		return
	}

	user, err := s.userRepo.FindByEmail(notif.EmailAddress)
	if err != nil {
		log.Printf("[PubSub] Error looking up user %s: %v", notif.EmailAddress, err)
		return
	}
	if user == nil {
		return
	}

	if !s.advanceHistory(user.ID, notif.HistoryID) {
		return // already seen this history point
	}

	if err := s.ingest(ctx, user.ID); err != nil {
		log.Printf("[PubSub] Ingest for user %s failed: %v", user.ID, err)
	}
}

// advanceHistory records the notification's historyId and reports whether
// it moves the user's watermark forward
func (s *Service) advanceHistory(userID string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[userID]; ok && historyID <= last {
		return false
	}
	s.lastHistoryID[userID] = historyID
	return true
}

// ingest fetches the user's recent unread mail and enqueues it with a
// short visibility delay so push-triggered items are serviced quickly
func (s *Service) ingest(ctx context.Context, userID string) error {
	a, err := s.factory.New(userID, messagedomain.SourceEmail)
	if err != nil {
		return err
	}
	if err := a.Connect(ctx); err != nil {
		return err
	}

	messages, err := a.FetchMessages(ctx, &messagedomain.FetchFilter{UnreadOnly: true, Limit: 20})
	if err != nil {
		return err
	}

	opts := queuedomain.DefaultEnqueueOptions()
	opts.VisibilityDelay = 5 * time.Second
	for _, m := range messages {
		if _, err := s.queue.Enqueue(m, userID, opts); err != nil {
			return err
		}
	}
	return nil
}
