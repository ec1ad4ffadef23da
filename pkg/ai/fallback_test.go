package ai

import (
	"context"
	"errors"
	"testing"

	messagedomain "voicebox-backend/internal/message/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	result *Classification
	errs   []error
	calls  int
}

func (s *stubClassifier) Classify(ctx context.Context, input ClassificationInput) (*Classification, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if s.result != nil {
		return s.result, nil
	}
	return &Classification{Category: messagedomain.CategoryUnknown, Action: messagedomain.ActionMarkRead}, nil
}

func TestFallbackUsesGeminiFirst(t *testing.T) {
	gemini := &stubClassifier{result: &Classification{Category: messagedomain.CategoryImportant, Action: messagedomain.ActionGeneratePrompt}}
	ollama := &stubClassifier{}
	f := NewFallbackService(gemini, ollama)

	result, err := f.Classify(context.Background(), ClassificationInput{Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, messagedomain.CategoryImportant, result.Category)
	assert.Equal(t, 1, gemini.calls)
	assert.Zero(t, ollama.calls)
}

func TestFallbackSwitchesToOllamaOnQuotaError(t *testing.T) {
	gemini := &stubClassifier{errs: []error{errors.New("googleapi: Error 429: quota exceeded")}}
	ollama := &stubClassifier{result: &Classification{Category: messagedomain.CategoryMarketing, Action: messagedomain.ActionMarkRead}}
	f := NewFallbackService(gemini, ollama)

	result, err := f.Classify(context.Background(), ClassificationInput{Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, messagedomain.CategoryMarketing, result.Category)
	assert.Equal(t, 1, ollama.calls)
}

func TestFallbackRetriesGeminiWhenOllamaUnreachable(t *testing.T) {
	gemini := &stubClassifier{
		errs:   []error{errors.New("429 too many requests"), nil},
		result: &Classification{Category: messagedomain.CategoryImportant, Action: messagedomain.ActionGeneratePrompt},
	}
	ollama := &stubClassifier{errs: []error{errors.New("dial tcp 127.0.0.1:11434: connection refused")}}
	f := NewFallbackService(gemini, ollama)

	result, err := f.Classify(context.Background(), ClassificationInput{Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, messagedomain.CategoryImportant, result.Category)
	assert.Equal(t, 2, gemini.calls)
}

func TestFallbackPropagatesOllamaModelError(t *testing.T) {
	gemini := &stubClassifier{errs: []error{errors.New("429 too many requests")}}
	ollama := &stubClassifier{errs: []error{errors.New("model not found")}}
	f := NewFallbackService(gemini, ollama)

	_, err := f.Classify(context.Background(), ClassificationInput{Subject: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama")
	assert.Equal(t, 1, gemini.calls, "a model error is not worth a Gemini retry")
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(errors.New("dial tcp: connection refused")))
	assert.True(t, isConnectionError(errors.New("unexpected EOF")))
	assert.False(t, isConnectionError(errors.New("model not found")))
	assert.False(t, isConnectionError(nil))
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, isQuotaError(errors.New("Error 429: RESOURCE_EXHAUSTED")))
	assert.True(t, isQuotaError(errors.New("rate limit reached")))
	assert.False(t, isQuotaError(errors.New("bad request")))
	assert.False(t, isQuotaError(nil))
}
