package entities

import "errors"

// Typed failure taxonomy. Every failure from an external collaborator is
// converted into one of these at the component boundary; no raw platform
// or transport errors reach the session state machine.
var (
	// ErrDeviceUnavailable means device acquisition was denied or no
	// audio device exists. Retryable by the user.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrNoCaptureCapability means the platform supports neither live
	// recognition nor record-then-upload. Not retryable within the
	// same session type.
	ErrNoCaptureCapability = errors.New("no capture capability available")

	// ErrTranscriptionFailed is a network or server error during upload
	// transcription. Retryable.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrAskFailed means the answer service could not produce a reply.
	// Callers degrade to a fixed apology rather than failing the session.
	ErrAskFailed = errors.New("answer service failed")

	// ErrSynthesisFailed is a playback error mid-speech. Partial
	// playback already heard is not retried.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)
