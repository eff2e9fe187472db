package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
	"github.com/verbex/voxengine/internal/capability"
)

// TranscriptionKind tags the normalized outcome of one listening phase.
type TranscriptionKind string

const (
	// TranscriptText carries a finalized non-empty transcript.
	TranscriptText TranscriptionKind = "text"
	// TranscriptEmpty means no usable speech was captured.
	TranscriptEmpty TranscriptionKind = "empty"
	// TranscriptError is a transcription failure (network or server).
	TranscriptError TranscriptionKind = "error"
	// TranscriptAnswered means the transcription server pre-answered the
	// turn; Reply is ready to speak and the answer service is bypassed.
	TranscriptAnswered TranscriptionKind = "answered"
)

// TranscriptionResult is the single shape both capture strategies resolve
// to, produced once per listening phase.
type TranscriptionResult struct {
	Kind  TranscriptionKind
	Text  string
	Reply string
	Err   error
}

// Pipeline drives whichever capture strategy was selected through to a
// TranscriptionResult, normalizing both strategies' outputs and errors.
type Pipeline struct {
	recognizer  repositories.Recognizer
	transcriber repositories.Transcriber
	logger      *zap.Logger
}

// NewPipeline creates a pipeline over the available strategy collaborators.
func NewPipeline(recognizer repositories.Recognizer, transcriber repositories.Transcriber, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		recognizer:  recognizer,
		transcriber: transcriber,
		logger:      logger,
	}
}

// captureRun is one listening phase under the strategy chosen at start.
// The strategy never switches mid-session.
type captureRun struct {
	pipeline *Pipeline
	strategy capability.Capture
	stream   repositories.AudioStream
	rec      *recording
}

// Begin starts the selected strategy on the acquired stream.
func (p *Pipeline) Begin(ctx context.Context, strategy capability.Capture, stream repositories.AudioStream) (*captureRun, error) {
	run := &captureRun{pipeline: p, strategy: strategy, stream: stream}

	switch strategy {
	case capability.CaptureLive:
		if err := p.recognizer.Start(ctx, stream); err != nil {
			return nil, fmt.Errorf("failed to start recognition: %w", err)
		}
	case capability.CaptureRecord:
		run.rec = newRecording(stream)
	default:
		return nil, entities.ErrNoCaptureCapability
	}

	return run, nil
}

// Finalize stops capture and resolves the phase to a TranscriptionResult.
// The capture stream is closed here; the device slot itself is released by
// the orchestrator when it leaves the listening state.
func (r *captureRun) Finalize(ctx context.Context) TranscriptionResult {
	r.stream.Close()

	if r.strategy == capability.CaptureLive {
		return r.finalizeLive(ctx)
	}
	return r.finalizeRecorded(ctx)
}

func (r *captureRun) finalizeLive(ctx context.Context) TranscriptionResult {
	text, err := r.pipeline.recognizer.Stop(ctx)
	if err != nil {
		// A silently erroring recognizer resolves like silence: back to
		// idle with no message.
		r.pipeline.logger.Warn("recognition finalize failed", zap.Error(err))
		return TranscriptionResult{Kind: TranscriptEmpty}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return TranscriptionResult{Kind: TranscriptEmpty}
	}
	return TranscriptionResult{Kind: TranscriptText, Text: text}
}

func (r *captureRun) finalizeRecorded(ctx context.Context) TranscriptionResult {
	r.rec.wait()
	audio := r.rec.bytes()

	// Released before any audio frame arrived: skip the round-trip.
	if len(audio) == 0 {
		return TranscriptionResult{Kind: TranscriptEmpty}
	}

	result, err := r.pipeline.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return TranscriptionResult{Kind: TranscriptError, Err: err}
	}

	text := strings.TrimSpace(result.Transcript)
	if text == "" {
		text = strings.TrimSpace(result.Text)
	}

	if reply := strings.TrimSpace(result.Response); reply != "" {
		return TranscriptionResult{Kind: TranscriptAnswered, Text: text, Reply: reply}
	}
	if text == "" {
		return TranscriptionResult{Kind: TranscriptEmpty}
	}
	return TranscriptionResult{Kind: TranscriptText, Text: text}
}

// Abort tears the phase down without waiting for a result. Any callback
// the strategy fires afterwards belongs to a dead epoch and is discarded
// upstream.
func (r *captureRun) Abort() {
	r.stream.Close()
	if r.strategy == capability.CaptureLive {
		r.pipeline.recognizer.Abort()
	}
}

// recording drains the capture stream into an in-memory buffer for the
// record-then-upload strategy.
type recording struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	done chan struct{}
}

func newRecording(stream repositories.AudioStream) *recording {
	rec := &recording{done: make(chan struct{})}
	go func() {
		defer close(rec.done)
		for chunk := range stream.Chunks() {
			rec.mu.Lock()
			rec.buf.Write(chunk)
			rec.mu.Unlock()
		}
	}()
	return rec
}

// wait blocks until the stream closes and the drain finishes.
func (rec *recording) wait() {
	<-rec.done
}

func (rec *recording) bytes() []byte {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]byte, rec.buf.Len())
	copy(out, rec.buf.Bytes())
	return out
}
