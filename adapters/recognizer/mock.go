package recognizer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/repositories"
)

// Mock is a scripted recognizer for local runs and tests. It consumes the
// capture stream and returns a transcript derived from how much audio it
// heard, or a preset one.
type Mock struct {
	logger *zap.Logger

	mu         sync.Mutex
	scripted   string
	bytesHeard int
	running    bool
	drainDone  chan struct{}
}

var _ repositories.Recognizer = (*Mock)(nil)

// NewMock creates a mock recognizer.
func NewMock(logger *zap.Logger) *Mock {
	return &Mock{logger: logger}
}

// SetTranscript fixes the transcript the next Stop will return.
func (m *Mock) SetTranscript(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted = text
}

func (m *Mock) Start(ctx context.Context, stream repositories.AudioStream) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("recognition already in progress")
	}
	m.running = true
	m.bytesHeard = 0
	done := make(chan struct{})
	m.drainDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		for chunk := range stream.Chunks() {
			m.mu.Lock()
			m.bytesHeard += len(chunk)
			m.mu.Unlock()
		}
	}()

	return nil
}

func (m *Mock) Stop(ctx context.Context) (string, error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return "", fmt.Errorf("no recognition in progress")
	}
	done := m.drainDone
	m.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false

	if m.scripted != "" {
		return m.scripted, nil
	}

	m.logger.Debug("mock recognition finalized", zap.Int("bytesHeard", m.bytesHeard))
	switch {
	case m.bytesHeard > 64000:
		return "tell me something interesting about today", nil
	case m.bytesHeard > 0:
		return "hello there", nil
	default:
		return "", nil
	}
}

func (m *Mock) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}
