package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock holds simulation time in seconds and the pause flag. Time only
// advances through Advance, scaled by a caller-supplied speed multiplier.
type SimClock struct {
	t      float64
	paused bool
}

// Now returns the current simulation time in seconds.
func (c *SimClock) Now() float64 { return c.t }

// Paused reports whether the clock is paused.
func (c *SimClock) Paused() bool { return c.paused }

// SetPaused pauses or resumes the clock.
func (c *SimClock) SetPaused(p bool) { c.paused = p }

// Advance adds frameDt*speed to the simulation time unless paused. Negative
// speeds and frame deltas are treated as zero. It reports whether time was
// allowed to advance.
func (c *SimClock) Advance(frameDt, speed float64) bool {
	if c.paused {
		return false
	}
	if frameDt < 0 {
		frameDt = 0
	}
	if speed < 0 {
		speed = 0
	}
	c.t += frameDt * speed
	return true
}

// Reset rewinds to t=0 and unpauses.
func (c *SimClock) Reset() {
	c.t = 0
	c.paused = false
}

// Mode describes how the FrameDriver produces frames.
type Mode int

const (
	// RealTime waits for each tick and reports the measured wall-clock delta.
	RealTime Mode = iota
	// Accelerated emits frames back to back, each reporting exactly Tick.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// FrameDriver stands in for a renderer's frame scheduler: it calls every
// registered listener once per frame with the frame delta in seconds.
type FrameDriver struct {
	mu   sync.RWMutex
	Tick time.Duration
	Mode Mode

	frames    uint64
	listeners []func(frameDt float64)

	now func() time.Time
}

// NewFrameDriver constructs a driver.
func NewFrameDriver(tick time.Duration, mode Mode) *FrameDriver {
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	return &FrameDriver{
		Tick: tick,
		Mode: mode,
		now:  time.Now,
	}
}

// AddListener registers a callback invoked on every frame.
func (fd *FrameDriver) AddListener(fn func(frameDt float64)) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.listeners = append(fd.listeners, fn)
}

// Frames returns the number of frames emitted so far.
func (fd *FrameDriver) Frames() uint64 {
	fd.mu.RLock()
	defer fd.mu.RUnlock()
	return fd.frames
}

// Start runs the driver in a separate goroutine until ctx is cancelled or,
// when duration > 0, until duration worth of frame time has been emitted.
// It returns a channel that is closed when the driver finishes.
func (fd *FrameDriver) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var ticks <-chan time.Time
		if fd.Mode == RealTime {
			ticker := time.NewTicker(fd.Tick)
			defer ticker.Stop()
			ticks = ticker.C
		}

		elapsed := time.Duration(0)
		last := fd.now()
		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			var dt time.Duration
			if fd.Mode == RealTime {
				select {
				case <-ctx.Done():
					return
				case <-ticks:
				}
				now := fd.now()
				dt = now.Sub(last)
				last = now
			} else {
				select {
				case <-ctx.Done():
					return
				default:
				}
				dt = fd.Tick
			}
			elapsed += dt

			fd.mu.Lock()
			fd.frames++
			listeners := append([]func(float64){}, fd.listeners...)
			fd.mu.Unlock()

			for _, fn := range listeners {
				fn(dt.Seconds())
			}
		}
	}()
	return done
}
