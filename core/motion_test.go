package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/scene"
)

// ISS sample TLE.
const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func TestStaticMotionModel_NoChange(t *testing.T) {
	m := StaticMotionModel{At: mgl64.Vec3{1, 2, 3}}
	t1 := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{t1, t1.Add(time.Hour)} {
		pos, ok := m.Position(at)
		if !ok || pos != (mgl64.Vec3{1, 2, 3}) {
			t.Fatalf("static motion moved: %v, %v", pos, ok)
		}
	}
}

// Exact orbital values belong to go-satellite; this checks that positions
// move over time and sit at a plausible low-earth-orbit radius.
func TestSGP4MotionModel_ChangesOverTime(t *testing.T) {
	m, err := NewSGP4Model(model.TLE{Line1: issLine1, Line2: issLine2})
	if err != nil {
		t.Fatalf("NewSGP4Model: %v", err)
	}
	t1 := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)

	first, ok := m.Position(t1)
	if !ok {
		t.Fatalf("no position at %v", t1)
	}
	second, ok := m.Position(t1.Add(5 * time.Minute))
	if !ok {
		t.Fatalf("no position five minutes later")
	}
	if first.ApproxEqualThreshold(second, 1e-9) {
		t.Fatalf("expected orbital position to change over time, got %v at both times", first)
	}
	for _, p := range []mgl64.Vec3{first, second} {
		if r := p.Len(); r < 1.03 || r > 1.1 {
			t.Fatalf("radius %v earth radii is not a low earth orbit", r)
		}
	}
}

func TestNewSGP4ModelRejectsMalformedTLE(t *testing.T) {
	var cfgErr *ConfigError
	if _, err := NewSGP4Model(model.TLE{Line1: "1 short", Line2: issLine2}); !errors.As(err, &cfgErr) {
		t.Fatalf("NewSGP4Model(short line) = %v, want ConfigError", err)
	}
}

func TestAnimatorPositionsTrackedBodies(t *testing.T) {
	w := NewAnimationWorld()
	motion, err := NewSGP4Model(model.TLE{Line1: issLine1, Line2: issLine2})
	if err != nil {
		t.Fatalf("NewSGP4Model: %v", err)
	}
	node := scene.NewNode("iss")
	w.Root.Add(node)
	if err := w.Install(Installation{
		Group:  "iss",
		Bodies: []Body{{ID: "iss", Kind: model.KindSatellite, Node: node}},
		Tracks: []TrackedBody{{ID: "iss", Node: node, Motion: motion}},
	}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	a := stillAnimator()
	a.Tick(w, 0)
	p0 := node.Position
	a.Tick(w, 10)
	p1 := node.Position
	a.Tick(w, 0)
	if !node.Position.ApproxEqualThreshold(p0, 1e-12) {
		t.Fatalf("satellite position should depend only on elapsed")
	}
	if p0.ApproxEqualThreshold(p1, 1e-9) || math.IsNaN(p1.X()) {
		t.Fatalf("satellite did not move: %v -> %v", p0, p1)
	}
	if got := a.SimulationTime(10).Sub(a.Config().SatelliteEpoch); got != 10*time.Minute {
		t.Fatalf("10 elapsed seconds = %v simulated, want 10m", got)
	}
}
