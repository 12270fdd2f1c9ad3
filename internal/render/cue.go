package render

import (
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/signalsfoundry/orrery/internal/logging"
)

const cueSampleRate = beep.SampleRate(44100)

// DefaultCueDuration is the length of one countdown tone.
const DefaultCueDuration = 120 * time.Millisecond

// Cue plays a short sine tone for each release countdown step. Until Init
// succeeds every call is a no-op, so the viewer runs without audio.
type Cue struct {
	mu       sync.Mutex
	ready    bool
	duration time.Duration
	log      logging.Logger
}

// NewCue returns an uninitialised cue.
func NewCue(log logging.Logger) *Cue {
	if log == nil {
		log = logging.Noop()
	}
	return &Cue{duration: DefaultCueDuration, log: log}
}

// Init opens the audio device.
func (c *Cue) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	if err := speaker.Init(cueSampleRate, cueSampleRate.N(time.Second/10)); err != nil {
		return err
	}
	c.ready = true
	return nil
}

// Enabled reports whether the audio device is open.
func (c *Cue) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Countdown plays the tone for remaining counts left. The last count is
// pitched higher.
func (c *Cue) Countdown(remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return
	}
	tone, err := countdownTone(remaining, c.duration)
	if err != nil {
		c.log.Debug(context.Background(), "countdown cue skipped", logging.Err(err))
		return
	}
	speaker.Play(tone)
}

// Close releases the audio device.
func (c *Cue) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return
	}
	speaker.Clear()
	speaker.Close()
	c.ready = false
}

func countdownTone(remaining int, d time.Duration) (beep.Streamer, error) {
	freq := 660.0
	if remaining <= 1 {
		freq = 880.0
	}
	sine, err := generators.SineTone(cueSampleRate, freq)
	if err != nil {
		return nil, err
	}
	return &effects.Volume{
		Streamer: beep.Take(cueSampleRate.N(d), sine),
		Base:     2,
		Volume:   -2,
	}, nil
}
