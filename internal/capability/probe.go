package capability

import (
	"sync"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/repositories"
)

// Capture identifies which capture strategy the running platform supports.
type Capture string

const (
	// CaptureLive runs the speech-recognition service directly on the
	// raw stream.
	CaptureLive Capture = "live"
	// CaptureRecord records locally and uploads the buffer for remote
	// transcription.
	CaptureRecord Capture = "record"
	// CaptureNone means neither strategy is available.
	CaptureNone Capture = "none"
)

// Probe detects the capture capability exactly once and caches the result
// for the process lifetime. Selection never changes mid-session; downstream
// logic switches on the cached value and never re-probes.
type Probe struct {
	device      repositories.AudioDevice
	recognizer  repositories.Recognizer
	transcriber repositories.Transcriber
	logger      *zap.Logger

	once   sync.Once
	result Capture
}

// NewProbe creates a probe over the supplied collaborators. A nil
// collaborator is a missing platform capability.
func NewProbe(
	device repositories.AudioDevice,
	recognizer repositories.Recognizer,
	transcriber repositories.Transcriber,
	logger *zap.Logger,
) *Probe {
	return &Probe{
		device:      device,
		recognizer:  recognizer,
		transcriber: transcriber,
		logger:      logger,
	}
}

// Detect returns the cached capture capability, probing on first call.
// Both strategies need the capture device; the live recognizer wins when
// both are possible.
func (p *Probe) Detect() Capture {
	p.once.Do(func() {
		switch {
		case p.device == nil:
			p.result = CaptureNone
		case p.recognizer != nil:
			p.result = CaptureLive
		case p.transcriber != nil:
			p.result = CaptureRecord
		default:
			p.result = CaptureNone
		}
		p.logger.Info("Capture capability detected", zap.String("capability", string(p.result)))
	})
	return p.result
}
