package repositories

import "context"

// Voice is one synthesis voice offered by the platform.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Utterance is one bounded chunk of reply text queued for synthesis.
type Utterance struct {
	Text    string
	VoiceID string
	Rate    float64
	Pitch   float64
}

// PlaybackEventKind tags per-utterance lifecycle events.
type PlaybackEventKind string

const (
	PlaybackStarted PlaybackEventKind = "started"
	PlaybackEnded   PlaybackEventKind = "ended"
	PlaybackFailed  PlaybackEventKind = "failed"
)

// PlaybackEvent reports an utterance lifecycle transition. Err is set
// only for PlaybackFailed.
type PlaybackEvent struct {
	Kind PlaybackEventKind
	Err  error
}

// Synthesizer is the platform speech-synthesis collaborator. Its absence
// degrades the engine to silent mode: replies are still surfaced as text.
type Synthesizer interface {
	// Voices lists available voices. The list may initially be empty
	// while voices load; callers should refresh their cache later.
	Voices(ctx context.Context) ([]Voice, error)
	// Speak synthesizes one utterance and reports lifecycle events on
	// the returned channel, which is closed after the terminal event.
	Speak(ctx context.Context, u Utterance) (<-chan PlaybackEvent, error)
	// Cancel interrupts the in-flight utterance, if any.
	Cancel()
}
