package timectrl

import (
	"sync"
	"time"
)

// Clock supplies the non-decreasing elapsed time, in seconds, that drives
// orbit angles. Implementations never go backwards.
type Clock interface {
	Elapsed() float64
}

// WallClock measures monotonic wall time since Start (or construction).
type WallClock struct {
	mu    sync.Mutex
	start time.Time
	last  float64
	now   func() time.Time
}

// NewWallClock starts a wall clock at the current instant.
func NewWallClock() *WallClock {
	return newWallClock(time.Now)
}

func newWallClock(now func() time.Time) *WallClock {
	return &WallClock{start: now(), now: now}
}

// Elapsed returns seconds since the clock started.
func (c *WallClock) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.now().Sub(c.start).Seconds()
	if e < c.last {
		e = c.last
	}
	c.last = e
	return e
}

// StepClock advances by a fixed step each time Advance is called. It is the
// deterministic clock used by headless runs and tests.
type StepClock struct {
	Step    float64
	elapsed float64
}

// NewStepClock returns a clock at zero that advances by step seconds.
// Negative steps are treated as zero.
func NewStepClock(step float64) *StepClock {
	if step < 0 {
		step = 0
	}
	return &StepClock{Step: step}
}

// Elapsed returns the accumulated time.
func (c *StepClock) Elapsed() float64 { return c.elapsed }

// Advance moves the clock forward one step and returns the new elapsed time.
func (c *StepClock) Advance() float64 {
	if c.Step > 0 {
		c.elapsed += c.Step
	}
	return c.elapsed
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// Frame is delivered to listeners on every controller tick.
type Frame struct {
	Index   uint64
	Elapsed float64   // seconds since StartTime
	Time    time.Time // StartTime + Elapsed
}

// TimeController drives frames at a fixed tick and notifies registered listeners.
// It implements Clock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	frames      uint64

	listeners []func(Frame)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Elapsed returns seconds of simulation time since StartTime. Implements Clock.
func (tc *TimeController) Elapsed() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime.Sub(tc.StartTime).Seconds()
}

// SetTime moves the controller forward to t. Earlier times are ignored so
// the clock stays non-decreasing.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if t.After(tc.currentTime) {
		tc.currentTime = t
	}
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(Frame)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the controller for the specified duration in a separate goroutine.
// A non-positive duration runs until stop is closed. It returns a channel
// that is closed when the controller finishes.
func (tc *TimeController) Start(duration time.Duration, stop <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.RLock()
		simTime := tc.currentTime
		listeners := append([]func(Frame){}, tc.listeners...)
		tc.mu.RUnlock()

		var ticks <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			ticks = ticker.C
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if ticks != nil {
				select {
				case <-ticks:
				case <-stop:
					return
				}
			} else {
				select {
				case <-stop:
					return
				default:
				}
			}

			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = simTime
			tc.frames++
			frame := Frame{
				Index:   tc.frames,
				Elapsed: simTime.Sub(tc.StartTime).Seconds(),
				Time:    simTime,
			}
			tc.mu.Unlock()

			for _, fn := range listeners {
				fn(frame)
			}
		}
	}()
	return done
}
