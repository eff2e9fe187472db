package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
)

// Handle is the ownership token for an acquired capture device and its
// derived analysis node. It is valid only between Acquire and Release;
// Release is idempotent and must be called exactly once per acquisition
// on every exit path.
type Handle struct {
	id       string
	stream   repositories.AudioStream
	analyser repositories.Analyser
	guard    *Guard
	once     sync.Once
}

// ID returns the unique acquisition identifier.
func (h *Handle) ID() string {
	return h.id
}

// Stream returns the live audio stream.
func (h *Handle) Stream() repositories.AudioStream {
	return h.stream
}

// Analyser returns the analysis node derived from the stream.
func (h *Handle) Analyser() repositories.Analyser {
	return h.analyser
}

// Release stops the underlying stream and frees the guard's slot. Calling
// it again, or after a newer handle was acquired, is a no-op.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.stream.Close()
		h.guard.release(h)
	})
}

// Guard owns the single optional capture-handle slot. The audio device is
// never shared: each listening phase performs a fresh acquisition and a
// fresh release.
type Guard struct {
	device repositories.AudioDevice
	logger *zap.Logger

	mu        sync.Mutex
	current   *Handle
	acquiring bool
}

// NewGuard creates a guard over the platform capture device. A nil device
// makes every acquisition fail with ErrDeviceUnavailable.
func NewGuard(device repositories.AudioDevice, logger *zap.Logger) *Guard {
	return &Guard{device: device, logger: logger}
}

// Acquire opens the device exclusively. It fails while another handle is
// outstanding, and wraps every device failure as ErrDeviceUnavailable.
func (g *Guard) Acquire(ctx context.Context) (*Handle, error) {
	if g.device == nil {
		return nil, fmt.Errorf("%w: no capture device present", entities.ErrDeviceUnavailable)
	}

	g.mu.Lock()
	if g.current != nil || g.acquiring {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: capture already held", entities.ErrDeviceUnavailable)
	}
	g.acquiring = true
	g.mu.Unlock()

	stream, analyser, err := g.device.Open(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquiring = false
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrDeviceUnavailable, err)
	}

	handle := &Handle{
		id:       uuid.New().String(),
		stream:   stream,
		analyser: analyser,
		guard:    g,
	}
	g.current = handle
	g.logger.Info("Capture device acquired", zap.String("handleID", handle.id))
	return handle, nil
}

// Held reports whether a handle is currently outstanding.
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil
}

func (g *Guard) release(h *Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == h {
		g.current = nil
		g.logger.Info("Capture device released", zap.String("handleID", h.id))
	}
}
