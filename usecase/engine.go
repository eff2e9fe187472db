package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
	"github.com/verbex/voxengine/internal/capability"
)

// User-facing messages for the failure taxonomy.
const (
	msgDeviceUnavailable   = "Microphone unavailable. Check permissions and try again."
	msgNoCaptureCapability = "Voice input isn't supported here. Try typing your question instead."
	msgTranscriptionFailed = "Couldn't transcribe that. Please try again."
	msgAskFailed           = "The assistant had trouble answering."
	msgSynthesisFailed     = "Playback was interrupted."
)

// Listener observes session snapshots after every state or field change.
// Listeners must not block; they are invoked inline on engine goroutines.
type Listener func(entities.Session)

// Config wires the engine's collaborators. Nil Device, Recognizer,
// Transcriber or Synthesizer mean the corresponding platform capability
// is missing; the engine degrades accordingly.
type Config struct {
	Device      repositories.AudioDevice
	Recognizer  repositories.Recognizer
	Transcriber repositories.Transcriber
	Answer      repositories.AnswerClient
	Synthesizer repositories.Synthesizer
	Preferences repositories.PreferenceStore
	Logger      *zap.Logger
}

// Engine is the session state machine: it owns the current state,
// sequences capture, transcription, answering and speech, and guarantees
// exactly one active session at a time.
//
// The transition core is synchronous under one mutex. Asynchronous
// collaborator callbacks re-enter through the handle* methods, each tagged
// with the session epoch captured when the work was launched; an event
// whose epoch no longer matches belongs to a cancelled or superseded
// session and is silently discarded.
type Engine struct {
	guard    *Guard
	probe    *capability.Probe
	pipeline *Pipeline
	speaker  *Speaker
	answer   repositories.AnswerClient
	logger   *zap.Logger

	mu            sync.Mutex
	session       entities.Session
	epoch         uint64
	handle        *Handle
	run           *captureRun
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	starting      bool
	listeners     []Listener
}

// NewEngine builds an engine from its collaborators.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		guard:    NewGuard(cfg.Device, logger),
		probe:    capability.NewProbe(cfg.Device, cfg.Recognizer, cfg.Transcriber, logger),
		pipeline: NewPipeline(cfg.Recognizer, cfg.Transcriber, logger),
		speaker:  NewSpeaker(cfg.Synthesizer, cfg.Preferences, logger),
		answer:   cfg.Answer,
		logger:   logger,
		session:  entities.NewSession(),
	}
}

// Subscribe registers a snapshot listener.
func (e *Engine) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Snapshot returns a copy of the current session.
func (e *Engine) Snapshot() entities.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// SetMuted flips the muted flag. Muting affects the next reply, not one
// already being spoken.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	if e.session.Muted == muted {
		e.mu.Unlock()
		return
	}
	e.session.Muted = muted
	snap := e.session
	e.mu.Unlock()
	e.emit(snap)
}

// AnalyserSource exposes the currently valid analysis node for the level
// meter: non-nil exactly while a capture handle is held.
func (e *Engine) AnalyserSource() func() repositories.Analyser {
	return func() repositories.Analyser {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.handle == nil {
			return nil
		}
		return e.handle.Analyser()
	}
}

// Held reports whether a capture handle is currently held.
func (e *Engine) Held() bool {
	return e.guard.Held()
}

// Start begins a listening phase. It is a no-op while a session cycle is
// already active. On acquisition failure the session surfaces a visible
// error and stays idle; the user may retry.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.session.State != entities.StateIdle || e.starting {
		e.mu.Unlock()
		return nil
	}

	strategy := e.probe.Detect()
	if strategy == capability.CaptureNone {
		e.session.ErrorMessage = msgNoCaptureCapability
		snap := e.session
		e.mu.Unlock()
		e.emit(snap)
		return entities.ErrNoCaptureCapability
	}

	e.epoch++
	myEpoch := e.epoch
	e.starting = true
	sessCtx, cancel := context.WithCancel(ctx)
	e.sessionCtx = sessCtx
	e.sessionCancel = cancel
	e.mu.Unlock()

	handle, err := e.guard.Acquire(sessCtx)
	if err != nil {
		cancel()
		e.failStart(myEpoch, msgDeviceUnavailable, err)
		return err
	}

	run, err := e.pipeline.Begin(sessCtx, strategy, handle.Stream())
	if err != nil {
		handle.Release()
		cancel()
		wrapped := fmt.Errorf("%w: %v", entities.ErrDeviceUnavailable, err)
		e.failStart(myEpoch, msgDeviceUnavailable, wrapped)
		return wrapped
	}

	e.mu.Lock()
	e.starting = false
	if e.epoch != myEpoch {
		// Cancelled while acquiring; tear down what we just got.
		e.mu.Unlock()
		run.Abort()
		handle.Release()
		return nil
	}
	e.handle = handle
	e.run = run
	e.session.State = entities.StateListening
	e.session.Transcript = ""
	e.session.Reply = ""
	e.session.ErrorMessage = ""
	snap := e.session
	e.mu.Unlock()

	e.logger.Info("Listening started",
		zap.String("handleID", handle.ID()),
		zap.String("strategy", string(strategy)))
	e.emit(snap)
	return nil
}

func (e *Engine) failStart(epoch uint64, message string, err error) {
	e.logger.Warn("Failed to start listening", zap.Error(err))
	e.mu.Lock()
	e.starting = false
	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	e.session.ErrorMessage = message
	snap := e.session
	e.mu.Unlock()
	e.emit(snap)
}

// Stop ends the listening phase and advances the pipeline: transcription,
// then answer, then speech. It is a no-op unless listening. The capture
// handle stays held until the transcript resolves, so the handle is held
// exactly while the session is listening.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.session.State != entities.StateListening || e.run == nil {
		e.mu.Unlock()
		return
	}
	myEpoch := e.epoch
	run := e.run
	e.run = nil // a second Stop must not finalize the same run again
	ctx := e.sessionCtx
	e.mu.Unlock()

	go func() {
		result := run.Finalize(ctx)
		e.handleTranscript(myEpoch, result)
	}()
}

// Toggle stops when listening, otherwise starts. This is the single-tap
// entry point; press-and-hold binds Start and Stop directly.
func (e *Engine) Toggle(ctx context.Context) error {
	if e.Snapshot().State == entities.StateListening {
		e.Stop()
		return nil
	}
	return e.Start(ctx)
}

// Cancel forcibly returns to idle from any state: it aborts in-flight
// capture without waiting for its callback, releases any held handle, and
// interrupts synthesis. Safe from any state and at any suspension point.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.epoch++
	cancel := e.sessionCancel
	e.sessionCancel = nil
	run := e.run
	e.run = nil
	handle := e.handle
	e.handle = nil
	changed := e.session.State != entities.StateIdle || e.session.ErrorMessage != ""
	e.session.State = entities.StateIdle
	e.session.ErrorMessage = ""
	snap := e.session
	e.mu.Unlock()

	if run != nil {
		run.Abort()
	}
	if handle != nil {
		handle.Release()
	}
	if cancel != nil {
		cancel()
	}
	e.speaker.Cancel()

	if changed {
		e.logger.Info("Session cancelled")
		e.emit(snap)
	}
}

// handleTranscript is the TranscriptReady event: it releases the handle
// (the one exit from listening) and routes the normalized result.
func (e *Engine) handleTranscript(epoch uint64, result TranscriptionResult) {
	e.mu.Lock()
	if epoch != e.epoch || e.session.State != entities.StateListening {
		e.mu.Unlock()
		return
	}

	if e.handle != nil {
		e.handle.Release()
		e.handle = nil
	}

	switch result.Kind {
	case TranscriptEmpty:
		e.session.State = entities.StateIdle
		snap := e.session
		e.mu.Unlock()
		e.emit(snap)

	case TranscriptError:
		e.logger.Warn("Transcription failed", zap.Error(result.Err))
		e.session.State = entities.StateIdle
		e.session.ErrorMessage = msgTranscriptionFailed
		snap := e.session
		e.mu.Unlock()
		e.emit(snap)

	case TranscriptAnswered:
		// Server pre-answered the turn: skip the answer service.
		e.session.Transcript = result.Text
		e.session.Reply = result.Reply
		e.session.State = entities.StateThinking
		snap := e.session
		e.mu.Unlock()
		e.emit(snap)
		e.beginSpeaking(epoch, result.Reply)

	case TranscriptText:
		e.session.Transcript = result.Text
		e.session.State = entities.StateThinking
		ctx := e.sessionCtx
		snap := e.session
		e.mu.Unlock()
		e.emit(snap)

		go func() {
			reply, err := e.ask(ctx, result.Text)
			e.handleAnswer(epoch, reply, err)
		}()
	}
}

func (e *Engine) ask(ctx context.Context, transcript string) (string, error) {
	if e.answer == nil {
		return repositories.FallbackReply, fmt.Errorf("%w: no answer client configured", entities.ErrAskFailed)
	}
	return e.answer.Ask(ctx, transcript)
}

// handleAnswer is the answer-ready event. A failed ask still carries the
// fallback apology as reply text, so the user always gets a response.
func (e *Engine) handleAnswer(epoch uint64, reply string, err error) {
	e.mu.Lock()
	if epoch != e.epoch || e.session.State != entities.StateThinking {
		e.mu.Unlock()
		return
	}

	if err != nil {
		e.logger.Warn("Answer service failed", zap.Error(err))
		e.session.ErrorMessage = msgAskFailed
	}

	reply = strings.TrimSpace(reply)
	e.session.Reply = reply

	if reply == "" {
		e.session.State = entities.StateIdle
		snap := e.session
		e.mu.Unlock()
		e.emit(snap)
		return
	}

	snap := e.session
	e.mu.Unlock()
	e.emit(snap)
	e.beginSpeaking(epoch, reply)
}

// beginSpeaking hands the reply to the speech player, or goes straight to
// idle in silent mode (muted, or no synthesizer): the reply is still
// surfaced as text.
func (e *Engine) beginSpeaking(epoch uint64, text string) {
	e.mu.Lock()
	if epoch != e.epoch || e.session.State != entities.StateThinking {
		e.mu.Unlock()
		return
	}

	if e.session.Muted || !e.speaker.Available() {
		e.session.State = entities.StateIdle
		snap := e.session
		e.mu.Unlock()
		e.emit(snap)
		return
	}
	ctx := e.sessionCtx
	e.mu.Unlock()

	err := e.speaker.Speak(ctx, text, func(event repositories.PlaybackEvent) {
		e.handlePlayback(epoch, event)
	})
	if err != nil {
		e.handlePlayback(epoch, repositories.PlaybackEvent{
			Kind: repositories.PlaybackFailed,
			Err:  fmt.Errorf("%w: %v", entities.ErrSynthesisFailed, err),
		})
	}
}

// handlePlayback consumes the speech player's lifecycle events.
func (e *Engine) handlePlayback(epoch uint64, event repositories.PlaybackEvent) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}

	switch event.Kind {
	case repositories.PlaybackStarted:
		if e.session.State != entities.StateThinking {
			e.mu.Unlock()
			return
		}
		e.session.State = entities.StateSpeaking

	case repositories.PlaybackEnded:
		if e.session.State != entities.StateSpeaking && e.session.State != entities.StateThinking {
			e.mu.Unlock()
			return
		}
		e.session.State = entities.StateIdle

	case repositories.PlaybackFailed:
		e.logger.Warn("Playback failed", zap.Error(event.Err))
		e.session.State = entities.StateIdle
		e.session.ErrorMessage = msgSynthesisFailed
	}

	snap := e.session
	e.mu.Unlock()
	e.emit(snap)
}

func (e *Engine) emit(snap entities.Session) {
	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
