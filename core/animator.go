package core

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/scene"
)

// DefaultTimeCompression makes every orbit run four times faster than its
// nominal period.
const DefaultTimeCompression = 4.0

// AnimatorConfig holds the animation tuning knobs.
type AnimatorConfig struct {
	// TimeCompression divides every period. Must be > 0.
	TimeCompression float64
	// SpinPerFrame is added to the root rotation about SpinAxis each tick.
	SpinPerFrame float64
	SpinAxis     mgl64.Vec3

	// SatelliteEpoch is the simulation time at elapsed 0; SatelliteTimeScale
	// converts elapsed seconds into simulated seconds.
	SatelliteEpoch     time.Time
	SatelliteTimeScale float64
}

// DefaultAnimatorConfig returns the classic settings.
func DefaultAnimatorConfig() AnimatorConfig {
	return AnimatorConfig{
		TimeCompression:    DefaultTimeCompression,
		SpinPerFrame:       0.004,
		SpinAxis:           scene.AxisY,
		SatelliteEpoch:     time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC),
		SatelliteTimeScale: 60,
	}
}

// OrbitAngle returns the absolute orbit angle in radians after elapsed
// seconds. It is a pure function of its inputs.
func OrbitAngle(elapsed, period, compression float64) float64 {
	if !(period > 0) || !(compression > 0) {
		return 0
	}
	return elapsed / (period / compression) * 2 * math.Pi
}

// Animator advances node transforms from the orbit clock.
type Animator struct {
	cfg AnimatorConfig
}

// NewAnimator builds an Animator, replacing unusable settings with defaults.
func NewAnimator(cfg AnimatorConfig) *Animator {
	def := DefaultAnimatorConfig()
	if !(cfg.TimeCompression > 0) {
		cfg.TimeCompression = def.TimeCompression
	}
	if cfg.SpinAxis.Len() < 1e-12 {
		cfg.SpinAxis = def.SpinAxis
	}
	if cfg.SatelliteEpoch.IsZero() {
		cfg.SatelliteEpoch = def.SatelliteEpoch
	}
	if cfg.SatelliteTimeScale <= 0 {
		cfg.SatelliteTimeScale = def.SatelliteTimeScale
	}
	return &Animator{cfg: cfg}
}

// Config returns the effective configuration.
func (a *Animator) Config() AnimatorConfig { return a.cfg }

// Tick sets every registered orbit and moon to its absolute angle for
// elapsed, positions tracked satellites and advances the root spin. Orbit
// angles and satellite positions depend only on elapsed; the root spin is
// incremental and so accumulates once per call.
func (a *Animator) Tick(w *AnimationWorld, elapsed float64) {
	if w == nil {
		return
	}
	for _, o := range w.orbits {
		o.Angle = OrbitAngle(elapsed, o.Period, a.cfg.TimeCompression)
		o.Node.SetRotation(o.Axis, o.Angle)
	}
	// Moon pivots hang under their parent's node, so setting the local
	// rotation composes with whatever the parent is doing this frame.
	for _, m := range w.moons {
		m.Angle = OrbitAngle(elapsed, m.Period, a.cfg.TimeCompression)
		m.Node.SetRotation(m.Axis, m.Angle)
	}
	if len(w.tracks) > 0 {
		at := a.SimulationTime(elapsed)
		for _, t := range w.tracks {
			if pos, ok := t.Motion.Position(at); ok {
				t.Node.Position = pos
			}
		}
	}
	if a.cfg.SpinPerFrame != 0 {
		w.Root.Rotate(a.cfg.SpinAxis, a.cfg.SpinPerFrame)
	}
}

// SimulationTime maps elapsed animation seconds onto the satellite clock.
func (a *Animator) SimulationTime(elapsed float64) time.Time {
	d := time.Duration(elapsed * a.cfg.SatelliteTimeScale * float64(time.Second))
	return a.cfg.SatelliteEpoch.Add(d)
}
