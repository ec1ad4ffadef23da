package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	// Source providers
	GoogleClientID     string
	GoogleClientSecret string
	MSGraphBaseURL     string

	// AI classification
	AIProvider    string // "gemini", "ollama" or "auto"
	GeminiAPIKey  string
	OllamaBaseURL string
	OllamaModel   string

	// Voice synthesis
	TTSAPIKey       string
	TTSVoice        string
	VoiceStorageDir string
	VoiceBaseURL    string

	// Worker scheduling
	PollInterval      time.Duration
	RetryDelay        time.Duration
	WorkerMaxRetries  int
	ProcessorInterval time.Duration
	QueueBatchSize    int
	QueueRetryDelay   time.Duration

	// Push ingestion + notifications
	GoogleProjectID     string
	GooglePubSubTopic   string
	GoogleCredentials   string
	FirebaseCredentials string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=voicebox port=5432 sslmode=disable"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		MSGraphBaseURL:     getEnv("MSGRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),

		TTSAPIKey:       getEnv("TTS_API_KEY", ""),
		TTSVoice:        getEnv("TTS_VOICE", "en-US-Neural2-C"),
		VoiceStorageDir: getEnv("VOICE_STORAGE_DIR", "./data/voice"),
		VoiceBaseURL:    getEnv("VOICE_BASE_URL", "/api/voice"),

		PollInterval:      getDurationEnv("POLL_INTERVAL", 60*time.Second),
		RetryDelay:        getDurationEnv("RETRY_DELAY", 15*time.Second),
		WorkerMaxRetries:  getIntEnv("WORKER_MAX_RETRIES", 3),
		ProcessorInterval: getDurationEnv("PROCESSOR_INTERVAL", 10*time.Second),
		QueueBatchSize:    getIntEnv("QUEUE_BATCH_SIZE", 10),
		QueueRetryDelay:   getDurationEnv("QUEUE_RETRY_DELAY", 30*time.Second),

		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("GOOGLE_PUBSUB_TOPIC", "gmail-updates"),
		GoogleCredentials:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
