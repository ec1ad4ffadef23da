package usecase

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	voicedomain "voicebox-backend/internal/voice/domain"
	voicerepo "voicebox-backend/internal/voice/repository"
)

// Synthesizer converts text into audio bytes
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// mp3BytesPerSecond approximates a 128 kbps MP3 stream; good enough for
// a duration estimate until real audio inspection lands
const mp3BytesPerSecond = 16000.0

// Generator synthesizes spoken responses and stores them on local disk,
// addressed by (user, message)
type Generator struct {
	synth      Synthesizer
	responses  voicerepo.VoiceResponseRepository
	storageDir string
	baseURL    string
}

// NewGenerator creates a voice response generator
func NewGenerator(synth Synthesizer, responses voicerepo.VoiceResponseRepository, storageDir, baseURL string) *Generator {
	return &Generator{
		synth:      synth,
		responses:  responses,
		storageDir: storageDir,
		baseURL:    baseURL,
	}
}

// GenerateResponse synthesizes audio for the text, writes it under the
// storage dir and persists the mapping. Returns the serving URL and an
// estimated duration in seconds.
func (g *Generator) GenerateResponse(ctx context.Context, userID, messageID, text string) (string, float64, error) {
	if text == "" {
		return "", 0, fmt.Errorf("no text to synthesize")
	}

	audio, err := g.synth.Synthesize(ctx, text)
	if err != nil {
		return "", 0, fmt.Errorf("synthesize: %w", err)
	}

	dir := filepath.Join(g.storageDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create storage dir: %w", err)
	}

	filename := messageID + ".mp3"
	if err := os.WriteFile(filepath.Join(dir, filename), audio, 0o644); err != nil {
		return "", 0, fmt.Errorf("write audio file: %w", err)
	}

	audioURL := fmt.Sprintf("%s/%s/%s", g.baseURL, userID, filename)
	duration := float64(len(audio)) / mp3BytesPerSecond

	if err := g.SaveResponse(userID, messageID, audioURL, duration); err != nil {
		return "", 0, err
	}

	log.Printf("[Voice] Generated response for message %s (%.1fs)", messageID, duration)
	return audioURL, duration, nil
}

// SaveResponse persists the (user, message) -> audio mapping
func (g *Generator) SaveResponse(userID, messageID, audioURL string, duration float64) error {
	record := &voicedomain.VoiceResponse{
		UserID:          userID,
		MessageID:       messageID,
		AudioURL:        audioURL,
		DurationSeconds: duration,
		CreatedAt:       time.Now(),
	}
	if err := g.responses.Save(record); err != nil {
		return fmt.Errorf("save voice response: %w", err)
	}
	return nil
}

// GetResponse returns the stored voice response for a message, if any
func (g *Generator) GetResponse(userID, messageID string) (*voicedomain.VoiceResponse, error) {
	return g.responses.Find(userID, messageID)
}
