package capture

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/verbex/voxengine/domain/repositories"
)

const (
	frameInterval = 20 * time.Millisecond
	frameSamples  = 320 // 20ms of 16kHz mono
	analyserBins  = 32
)

// MemoryDevice is an in-memory implementation of AudioDevice producing a
// synthetic tone. It backs local runs and tests where no platform capture
// device exists, and can simulate a denied permission prompt.
type MemoryDevice struct {
	mu     sync.Mutex
	denied bool
	active *memoryStream
}

// NewMemoryDevice creates a device with permission granted.
func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{}
}

// Deny makes subsequent Open calls fail as if the user refused the
// permission prompt.
func (d *MemoryDevice) Deny(denied bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.denied = denied
}

// Ensure MemoryDevice implements the AudioDevice interface
var _ repositories.AudioDevice = (*MemoryDevice)(nil)

// Open acquires the device exclusively. A second Open while a stream is
// live fails until that stream is closed.
func (d *MemoryDevice) Open(ctx context.Context) (repositories.AudioStream, repositories.Analyser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.denied {
		return nil, nil, errors.New("microphone permission denied")
	}
	if d.active != nil && !d.active.closed() {
		return nil, nil, errors.New("capture device is busy")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s := newMemoryStream()
	d.active = s
	return s, &memoryAnalyser{stream: s}, nil
}

type memoryStream struct {
	chunks chan []byte
	stop   chan struct{}
	once   sync.Once
	done   chan struct{}

	mu    sync.Mutex
	phase float64
}

func newMemoryStream() *memoryStream {
	s := &memoryStream{
		chunks: make(chan []byte, 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *memoryStream) pump() {
	defer close(s.done)
	defer close(s.chunks)

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			frame := s.nextFrame()
			select {
			case s.chunks <- frame:
			default:
				// consumer is behind, drop the frame
			}
		}
	}
}

// nextFrame produces 16-bit little-endian PCM of a 440Hz tone.
func (s *memoryStream) nextFrame() []byte {
	s.mu.Lock()
	phase := s.phase
	s.phase += float64(frameSamples)
	s.mu.Unlock()

	frame := make([]byte, frameSamples*2)
	for i := 0; i < frameSamples; i++ {
		sample := int16(8000 * math.Sin(2*math.Pi*440*(phase+float64(i))/16000))
		frame[2*i] = byte(sample)
		frame[2*i+1] = byte(sample >> 8)
	}
	return frame
}

func (s *memoryStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *memoryStream) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *memoryStream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// memoryAnalyser synthesizes plausible frequency magnitudes from the
// stream's phase so the level meter has something to chew on.
type memoryAnalyser struct {
	stream *memoryStream
}

func (a *memoryAnalyser) Magnitudes() []float64 {
	a.stream.mu.Lock()
	phase := a.stream.phase
	a.stream.mu.Unlock()

	mags := make([]float64, analyserBins)
	for i := range mags {
		mags[i] = 0.5 + 0.5*math.Sin(phase/1600+float64(i)/3)
	}
	return mags
}
