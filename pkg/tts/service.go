package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Service calls the Google Cloud Text-to-Speech REST API
type Service struct {
	apiKey string
	voice  string
	client *http.Client
}

// NewService creates a new text-to-speech service
func NewService(apiKey, voice string) *Service {
	if voice == "" {
		voice = "en-US-Neural2-C"
	}
	return &Service{
		apiKey: apiKey,
		voice:  voice,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Synthesize converts text into MP3 audio bytes
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	url := "https://texttospeech.googleapis.com/v1/text:synthesize?key=" + s.apiKey

	// Language code is the voice name prefix, e.g. "en-US" from "en-US-Neural2-C"
	languageCode := s.voice
	if parts := strings.SplitN(s.voice, "-", 3); len(parts) >= 2 {
		languageCode = parts[0] + "-" + parts[1]
	}

	payload := map[string]interface{}{
		"input": map[string]string{"text": text},
		"voice": map[string]string{
			"languageCode": languageCode,
			"name":         s.voice,
		},
		"audioConfig": map[string]string{"audioEncoding": "MP3"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TTS API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.AudioContent == "" {
		return nil, fmt.Errorf("no audio returned")
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	return audio, nil
}
