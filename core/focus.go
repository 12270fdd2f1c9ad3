package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/scene"
)

// FocusPhase is the focus controller's state.
type FocusPhase int

const (
	Unfocused FocusPhase = iota
	Focused
	Releasing
)

func (p FocusPhase) String() string {
	switch p {
	case Unfocused:
		return "unfocused"
	case Focused:
		return "focused"
	case Releasing:
		return "releasing"
	default:
		return fmt.Sprintf("FocusPhase(%d)", int(p))
	}
}

// FocusState is a value snapshot of the controller.
type FocusState struct {
	Phase  FocusPhase
	Target string
	// Remaining counts left before release; only meaningful while Releasing.
	Remaining int
}

// Label is the HUD text for the state, empty when unfocused.
func (s FocusState) Label() string {
	switch s.Phase {
	case Focused:
		return "Following " + s.Target
	case Releasing:
		return fmt.Sprintf("Stopping in %d", s.Remaining)
	default:
		return ""
	}
}

// FocusConfig tunes the follow camera and the release countdown.
type FocusConfig struct {
	ReleaseCount int
	// FramesPerCount is the number of ticks each countdown step lasts.
	FramesPerCount int
	// Offset is the camera displacement from the target, in the target's
	// local frame.
	Offset mgl64.Vec3
	// Blend is the fraction of the remaining distance covered per tick.
	Blend float64
	// SmoothingRate, when > 0, replaces Blend with 1-exp(-rate*dt).
	SmoothingRate float64
}

// DefaultFocusConfig returns the classic above-and-behind follow camera.
func DefaultFocusConfig() FocusConfig {
	return FocusConfig{
		ReleaseCount:   3,
		FramesPerCount: 1,
		Offset:         mgl64.Vec3{0, 15, 15},
		Blend:          0.1,
	}
}

// FocusController owns FocusState and drives the camera toward the target.
// It runs on the frame goroutine only.
type FocusController struct {
	cfg   FocusConfig
	state FocusState
	// frames counts ticks within the current countdown step.
	frames int

	lastElapsed float64
	haveElapsed bool

	// OnCount, when set, is called with the remaining count each time the
	// countdown steps (including the initial count on RequestRelease).
	OnCount func(remaining int)
}

// NewFocusController builds a controller; zero fields take defaults.
func NewFocusController(cfg FocusConfig) *FocusController {
	def := DefaultFocusConfig()
	if cfg.ReleaseCount <= 0 {
		cfg.ReleaseCount = def.ReleaseCount
	}
	if cfg.FramesPerCount <= 0 {
		cfg.FramesPerCount = def.FramesPerCount
	}
	if cfg.Blend <= 0 || cfg.Blend > 1 {
		cfg.Blend = def.Blend
	}
	return &FocusController{cfg: cfg}
}

// State returns a copy of the current state.
func (f *FocusController) State() FocusState { return f.state }

// Config returns the effective configuration.
func (f *FocusController) Config() FocusConfig { return f.cfg }

// Select focuses id, cancelling any pending release. Unknown ids are
// rejected with ErrUnknownBody and leave the state unchanged.
func (f *FocusController) Select(w *AnimationWorld, id string) error {
	if _, ok := w.Body(id); !ok {
		return fmt.Errorf("select %q: %w", id, ErrUnknownBody)
	}
	f.state = FocusState{Phase: Focused, Target: id}
	f.frames = 0
	return nil
}

// RequestRelease starts (or restarts) the release countdown. It does
// nothing while unfocused.
func (f *FocusController) RequestRelease() {
	if f.state.Phase == Unfocused {
		return
	}
	f.state.Phase = Releasing
	f.state.Remaining = f.cfg.ReleaseCount
	f.frames = 0
	if f.OnCount != nil {
		f.OnCount(f.state.Remaining)
	}
}

// Reset drops focus immediately.
func (f *FocusController) Reset() {
	f.state = FocusState{}
	f.frames = 0
}

// Tick advances the countdown and moves cam toward the target, including on
// the frame that ends a release. When the
// target no longer resolves the controller drops to Unfocused and returns a
// *DanglingFocusError; the camera is left where it is.
func (f *FocusController) Tick(w *AnimationWorld, cam *scene.Camera, controls *scene.OrbitControls, elapsed float64) error {
	dt := 0.0
	if f.haveElapsed {
		dt = math.Max(0, elapsed-f.lastElapsed)
	}
	f.lastElapsed, f.haveElapsed = elapsed, true

	if f.state.Phase == Unfocused {
		return nil
	}

	target := f.state.Target
	body, ok := w.Body(target)
	if !ok {
		f.Reset()
		return &DanglingFocusError{Target: target}
	}

	released := false
	if f.state.Phase == Releasing {
		f.frames++
		if f.frames >= f.cfg.FramesPerCount {
			f.frames = 0
			if f.state.Remaining <= 1 {
				released = true
			} else {
				f.state.Remaining--
				if f.OnCount != nil {
					f.OnCount(f.state.Remaining)
				}
			}
		}
	}
	// The frame that ends a release still follows the target.
	if released {
		defer f.Reset()
	}

	if cam == nil {
		return nil
	}
	pos := body.Node.WorldPosition()
	desired := pos.Add(body.Node.WorldOrientation().Rotate(f.cfg.Offset))
	cam.Position = lerp(cam.Position, desired, f.blend(dt))
	cam.LookAt(pos)
	if controls != nil {
		controls.SyncFrom(cam)
	}
	return nil
}

func (f *FocusController) blend(dt float64) float64 {
	if f.cfg.SmoothingRate > 0 {
		return 1 - math.Exp(-f.cfg.SmoothingRate*dt)
	}
	return f.cfg.Blend
}

func lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
