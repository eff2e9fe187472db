package levelmeter

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/repositories"
)

const (
	// Bands is the fixed size of every meter frame.
	Bands = 5

	gain            = 1.6
	idlePeriod      = 600 * time.Millisecond
	idleAmplitude   = 0.06
	defaultInterval = 16 * time.Millisecond
)

// Frame is one metering sample: Bands normalized magnitudes in [0,1].
type Frame [Bands]float64

// Source yields the currently valid analyser, or nil when the session is
// idle.
type Source func() repositories.Analyser

// Sink consumes frames. It must not block; slow consumers should drop.
type Sink func(Frame)

// Meter is the periodic sampling task feeding visual metering. It runs
// independently of the session orchestrator and is purely cosmetic: it
// never mutates session state and absorbs its own failures, so a metering
// glitch cannot destabilize a session.
type Meter struct {
	interval time.Duration
	source   Source
	sink     Sink
	logger   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a meter sampling at the default tick interval.
func New(source Source, sink Sink, logger *zap.Logger) *Meter {
	return &Meter{
		interval: defaultInterval,
		source:   source,
		sink:     sink,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetInterval overrides the sampling interval. Call before Start.
func (m *Meter) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// Start launches the sampling loop.
func (m *Meter) Start() {
	go m.run()
}

// Stop ends the sampling loop and waits for it to exit. Safe to call
// more than once, including concurrently.
func (m *Meter) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
}

func (m *Meter) run() {
	defer close(m.done)

	started := time.Now()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.tick(now.Sub(started))
		}
	}
}

// tick samples once. Panics from the analyser or the sink are absorbed.
func (m *Meter) tick(elapsed time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("level meter tick recovered", zap.Any("panic", r))
		}
	}()

	var frame Frame
	if analyser := m.source(); analyser != nil {
		frame = Reduce(analyser.Magnitudes())
	} else {
		frame = IdleFrame(elapsed)
	}
	m.sink(frame)
}

// Reduce collapses raw frequency magnitudes into Bands values, each the
// average of a contiguous band scaled by an empirical gain and clamped
// to 1.0.
func Reduce(magnitudes []float64) Frame {
	var frame Frame
	if len(magnitudes) == 0 {
		return frame
	}

	bandSize := len(magnitudes) / Bands
	if bandSize == 0 {
		bandSize = 1
	}

	for band := 0; band < Bands; band++ {
		start := band * bandSize
		if start >= len(magnitudes) {
			break
		}
		end := start + bandSize
		if band == Bands-1 || end > len(magnitudes) {
			end = len(magnitudes)
		}

		var sum float64
		for _, v := range magnitudes[start:end] {
			sum += v
		}
		value := sum / float64(end-start) * gain
		if value > 1 {
			value = 1
		}
		if value < 0 {
			value = 0
		}
		frame[band] = value
	}

	return frame
}

// IdleFrame produces the low-amplitude synthetic oscillation shown while
// no capture is active, phase-shifted per band for a gentle wave effect.
func IdleFrame(elapsed time.Duration) Frame {
	var frame Frame
	t := float64(elapsed) / float64(idlePeriod)
	for band := 0; band < Bands; band++ {
		phase := 2*math.Pi*t + float64(band)*math.Pi/float64(Bands)
		frame[band] = idleAmplitude * (0.5 + 0.5*math.Sin(phase))
	}
	return frame
}
