package repositories

import "context"

// AudioStream delivers raw capture frames from an acquired device.
// The channel is closed when the stream is closed or the device stops.
type AudioStream interface {
	// Chunks returns the channel of raw audio frames
	Chunks() <-chan []byte
	// Close stops delivery and releases the underlying track. Safe to
	// call more than once.
	Close() error
}

// Analyser exposes short-term frequency magnitudes derived from a live
// stream, used only for visual metering. Values are normalized to [0,1].
type Analyser interface {
	Magnitudes() []float64
}

// AudioDevice is the platform audio-capture collaborator. Open acquires
// the device exclusively and returns the live stream together with an
// analysis node derived from it. Acquisition may suspend pending an OS
// permission dialog; a denial or missing device surfaces as an error.
type AudioDevice interface {
	Open(ctx context.Context) (AudioStream, Analyser, error)
}
