package main

import (
	"context"
	"log"
	"strings"

	api "voicebox-backend/cmd/api"
	authusecase "voicebox-backend/internal/auth/usecase"
	"voicebox-backend/internal/ingest"
	"voicebox-backend/internal/ingest/adapter"
	messagedomain "voicebox-backend/internal/message/domain"
	messagerepo "voicebox-backend/internal/message/repository"
	"voicebox-backend/internal/notification"
	queuedomain "voicebox-backend/internal/queue/domain"
	queuerepo "voicebox-backend/internal/queue/repository"
	queueusecase "voicebox-backend/internal/queue/usecase"
	userdomain "voicebox-backend/internal/user/domain"
	userrepo "voicebox-backend/internal/user/repository"
	voicedomain "voicebox-backend/internal/voice/domain"
	voicerepo "voicebox-backend/internal/voice/repository"
	voiceusecase "voicebox-backend/internal/voice/usecase"
	"voicebox-backend/internal/worker"
	"voicebox-backend/pkg/ai"
	"voicebox-backend/pkg/config"
	"voicebox-backend/pkg/database"
	"voicebox-backend/pkg/fcm"
	"voicebox-backend/pkg/gmail"
	"voicebox-backend/pkg/msgraph"
	"voicebox-backend/pkg/sse"
	"voicebox-backend/pkg/tts"

	"github.com/cenkalti/backoff/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&userdomain.User{},
		&userdomain.Connection{},
		&userdomain.FCMToken{},
		&queuedomain.QueueItem{},
		&messagedomain.ProcessedMessage{},
		&voicedomain.VoiceResponse{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepository := userrepo.NewUserRepository(db)
	connectionRepo := userrepo.NewConnectionRepository(db)
	fcmTokenRepo := userrepo.NewFCMTokenRepository(db)
	queueRepository := queuerepo.NewQueueRepository(db, cfg.QueueRetryDelay)
	processedRepo := messagerepo.NewProcessedMessageRepository(db)
	voiceRepository := voicerepo.NewVoiceResponseRepository(db)

	// Initialize SSE Manager
	sseManager := sse.NewManager()
	go sseManager.Run()

	// Initialize source clients
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
	graphClient := msgraph.NewClient(cfg.MSGraphBaseURL)
	adapterFactory := adapter.NewFactory(connectionRepo, gmailService, graphClient)

	// Initialize AI classifier
	classifier, err := ai.NewClassifier(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiAPIKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	})
	if err != nil {
		log.Fatal("Failed to initialize AI classifier:", err)
	}

	// Initialize voice synthesis
	voiceGenerator := voiceusecase.NewGenerator(
		tts.NewService(cfg.TTSAPIKey, cfg.TTSVoice),
		voiceRepository,
		cfg.VoiceStorageDir,
		cfg.VoiceBaseURL,
	)

	// Initialize FCM Client (optional, pipeline works without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
			fcmClient = nil
		}
	} else {
		log.Printf("[WARN] No Firebase credentials configured, FCM disabled")
	}

	// Initialize queue processor
	processor := queueusecase.NewProcessor(queueRepository, processedRepo, userRepository, classifier, cfg.QueueBatchSize)
	processor.SetVoiceGenerator(voiceGenerator)
	processor.SetSSEManager(sseManager)
	if fcmClient != nil {
		processor.SetNotifier(notification.NewPushNotifier(fcmTokenRepo, fcmClient))
	}

	// Register workers
	workerManager := worker.NewManager()
	workerManager.Register(processor.NewWorker(worker.Options{
		Interval:    cfg.ProcessorInterval,
		RetryPolicy: backoff.NewConstantBackOff(cfg.RetryDelay),
		MaxRetries:  cfg.WorkerMaxRetries,
	}))

	// One monitor worker per known user
	users, err := userRepository.FindAll()
	if err != nil {
		log.Fatal("Failed to load users:", err)
	}
	for _, u := range users {
		monitor := ingest.NewMonitor(u.ID, adapterFactory, queueRepository, sseManager)
		workerManager.Register(monitor.NewWorker(worker.Options{
			Interval:    cfg.PollInterval,
			RetryPolicy: backoff.NewConstantBackOff(cfg.RetryDelay),
			MaxRetries:  cfg.WorkerMaxRetries,
		}))
	}
	workerManager.StartAll()

	// Initialize Pub/Sub push ingestion (optional)
	if cfg.GoogleProjectID != "" {
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "gmail-updates"
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, userRepository, adapterFactory, queueRepository, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, push ingestion disabled")
	}

	// Initialize HTTP handler
	authUsecaseInstance := authusecase.NewAuthUsecase(userRepository, cfg)
	handler := api.NewHandler(
		authUsecaseInstance,
		workerManager,
		queueRepository,
		processedRepo,
		connectionRepo,
		fcmTokenRepo,
		voiceGenerator,
		sseManager,
		cfg,
	)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
