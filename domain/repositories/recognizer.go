package repositories

import "context"

// Recognizer is the platform live speech-recognition collaborator.
// Recognition is single-shot: one Start/Stop cycle yields at most one
// final transcript.
type Recognizer interface {
	// Start begins recognition on the raw stream. It returns once the
	// service is consuming audio.
	Start(ctx context.Context, stream AudioStream) error
	// Stop ends capture and blocks until the service finalizes, returning
	// the final transcript. An empty transcript means no speech was
	// detected.
	Stop(ctx context.Context) (string, error)
	// Abort tears recognition down without waiting for finalization.
	// Any result produced afterwards must be discarded by the caller.
	Abort()
}
