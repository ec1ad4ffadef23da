package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	voicedomain "voicebox-backend/internal/voice/domain"
	voicerepo "voicebox-backend/internal/voice/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeSynth struct {
	audio []byte
	err   error
	texts []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func newTestGenerator(t *testing.T, synth Synthesizer) (*Generator, string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&voicedomain.VoiceResponse{}))

	dir := t.TempDir()
	return NewGenerator(synth, voicerepo.NewVoiceResponseRepository(db), dir, "/api/voice"), dir
}

func TestGenerateResponseWritesAudioAndRecord(t *testing.T) {
	synth := &fakeSynth{audio: make([]byte, 32000)}
	g, dir := newTestGenerator(t, synth)

	audioURL, duration, err := g.GenerateResponse(context.Background(), "user-1", "msg-1", "Reply agreeing to the meeting")
	require.NoError(t, err)
	assert.Equal(t, "/api/voice/user-1/msg-1.mp3", audioURL)
	assert.InDelta(t, 2.0, duration, 0.01)
	assert.Equal(t, []string{"Reply agreeing to the meeting"}, synth.texts)

	written, err := os.ReadFile(filepath.Join(dir, "user-1", "msg-1.mp3"))
	require.NoError(t, err)
	assert.Len(t, written, 32000)

	record, err := g.GetResponse("user-1", "msg-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, audioURL, record.AudioURL)
}

func TestGenerateResponseEmptyText(t *testing.T) {
	g, _ := newTestGenerator(t, &fakeSynth{})
	_, _, err := g.GenerateResponse(context.Background(), "user-1", "msg-1", "")
	assert.Error(t, err)
}

func TestGenerateResponseSynthesisFailure(t *testing.T) {
	g, _ := newTestGenerator(t, &fakeSynth{err: errors.New("tts quota exceeded")})
	_, _, err := g.GenerateResponse(context.Background(), "user-1", "msg-1", "hello")
	require.Error(t, err)

	record, err := g.GetResponse("user-1", "msg-1")
	require.NoError(t, err)
	assert.Nil(t, record, "failed synthesis must not leave a record behind")
}

func TestGenerateResponseOverwritesPreviousRecord(t *testing.T) {
	synth := &fakeSynth{audio: make([]byte, 16000)}
	g, _ := newTestGenerator(t, synth)

	_, _, err := g.GenerateResponse(context.Background(), "user-1", "msg-1", "first")
	require.NoError(t, err)
	_, _, err = g.GenerateResponse(context.Background(), "user-1", "msg-1", "second")
	require.NoError(t, err)

	record, err := g.GetResponse("user-1", "msg-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "/api/voice/user-1/msg-1.mp3", record.AudioURL)
}
