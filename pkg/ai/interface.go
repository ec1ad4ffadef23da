package ai

import (
	"context"
	"errors"

	messagedomain "voicebox-backend/internal/message/domain"
)

// ErrMalformedResponse indicates the model returned something that could
// not be mapped into the classification vocabulary. Callers normally never
// see it: ParseClassification recovers with a safe default instead.
var ErrMalformedResponse = errors.New("ai: malformed model response")

// ClassificationInput is the message material handed to the model
type ClassificationInput struct {
	Subject string
	Content string
	Sender  string
}

// Classification is the structured triage result for one message
type Classification struct {
	Category messagedomain.Category `json:"category"`
	Action   messagedomain.Action   `json:"action"`
	Summary  string                 `json:"summary,omitempty"`
	Prompt   string                 `json:"prompt,omitempty"`
}

// Classifier is the interface for AI message triage.
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type Classifier interface {
	Classify(ctx context.Context, input ClassificationInput) (*Classification, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
