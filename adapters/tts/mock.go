package tts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/repositories"
)

// Mock is an in-memory synthesizer for tests and local runs. It plays
// each utterance for a configurable duration and records what it spoke.
type Mock struct {
	logger *zap.Logger

	mu         sync.Mutex
	voices     []repositories.Voice
	voicesErr  error
	duration   time.Duration
	failAfter  int // fail the nth Speak call (1-based), 0 disables
	speakCalls int
	spoken     []repositories.Utterance
	cancel     context.CancelFunc
}

var _ repositories.Synthesizer = (*Mock)(nil)

// NewMock creates a mock synthesizer with a small default voice list.
func NewMock(logger *zap.Logger) *Mock {
	return &Mock{
		logger:   logger,
		duration: time.Millisecond,
		voices: []repositories.Voice{
			{ID: "v-samantha", Name: "Samantha"},
			{ID: "v-daniel", Name: "Daniel"},
		},
	}
}

// SetVoices replaces the voice list (empty simulates voices still loading).
func (m *Mock) SetVoices(voices []repositories.Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = voices
}

// SetUtteranceDuration sets how long each utterance "plays".
func (m *Mock) SetUtteranceDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

// FailOnCall makes the nth Speak call (1-based) emit a playback failure.
func (m *Mock) FailOnCall(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
}

// Spoken returns the utterances played so far.
func (m *Mock) Spoken() []repositories.Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repositories.Utterance, len(m.spoken))
	copy(out, m.spoken)
	return out
}

func (m *Mock) Voices(ctx context.Context) ([]repositories.Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voicesErr != nil {
		return nil, m.voicesErr
	}
	out := make([]repositories.Voice, len(m.voices))
	copy(out, m.voices)
	return out, nil
}

func (m *Mock) Speak(ctx context.Context, u repositories.Utterance) (<-chan repositories.PlaybackEvent, error) {
	m.mu.Lock()
	m.speakCalls++
	call := m.speakCalls
	fail := m.failAfter != 0 && call >= m.failAfter
	duration := m.duration
	runCtx, cancel := context.WithCancel(ctx)
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = cancel
	m.mu.Unlock()

	events := make(chan repositories.PlaybackEvent, 4)
	go func() {
		defer close(events)
		defer cancel()

		events <- repositories.PlaybackEvent{Kind: repositories.PlaybackStarted}

		select {
		case <-runCtx.Done():
			return
		case <-time.After(duration):
		}

		if fail {
			events <- repositories.PlaybackEvent{
				Kind: repositories.PlaybackFailed,
				Err:  fmt.Errorf("mock playback failure on call %d", call),
			}
			return
		}

		m.mu.Lock()
		m.spoken = append(m.spoken, u)
		m.mu.Unlock()

		events <- repositories.PlaybackEvent{Kind: repositories.PlaybackEnded}
	}()

	return events, nil
}

func (m *Mock) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.logger.Debug("mock synthesizer cancelled")
}
