package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/scene"
)

func stillAnimator() *Animator {
	cfg := DefaultAnimatorConfig()
	cfg.SpinPerFrame = 0
	return NewAnimator(cfg)
}

// rotates reports whether q maps v onto want.
func rotates(q mgl64.Quat, v, want mgl64.Vec3) bool {
	return q.Rotate(v).ApproxEqualThreshold(want, 1e-9)
}

func TestOrbitAngleQuarterPeriodsCompleteTurns(t *testing.T) {
	const period = 60.0
	for k := 0; k <= 8; k++ {
		elapsed := float64(k) * period / DefaultTimeCompression
		angle := OrbitAngle(elapsed, period, DefaultTimeCompression)
		if rem := math.Mod(angle, 2*math.Pi); rem > 1e-9 && 2*math.Pi-rem > 1e-9 {
			t.Fatalf("k=%d: angle %v is not a multiple of 2π", k, angle)
		}
	}
}

func TestOrbitAngleMonotonic(t *testing.T) {
	prev := -1.0
	for e := 0.0; e < 100; e += 0.37 {
		a := OrbitAngle(e, 37.2, DefaultTimeCompression)
		if a < prev {
			t.Fatalf("angle decreased at elapsed %v: %v < %v", e, a, prev)
		}
		prev = a
	}
	if got := OrbitAngle(10, 0, 4); got != 0 {
		t.Fatalf("OrbitAngle with zero period = %v, want 0", got)
	}
}

func TestTickIsIdempotent(t *testing.T) {
	w := NewAnimationWorld()
	inst, pivot, _ := planetInstallation("earth", 60, mgl64.Vec3{10, 0, 0})
	if err := w.Install(inst); err != nil {
		t.Fatalf("Install: %v", err)
	}
	a := stillAnimator()

	a.Tick(w, 7.25)
	first := pivot.Rotation
	a.Tick(w, 7.25)
	a.Tick(w, 7.25)
	if !first.ApproxEqualThreshold(pivot.Rotation, 1e-12) {
		t.Fatalf("repeated ticks changed rotation: %v -> %v", first, pivot.Rotation)
	}

	a.Tick(w, 60.0/DefaultTimeCompression)
	if !rotates(pivot.Rotation, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}) {
		t.Fatalf("a full compressed period should return to the start, got %v", pivot.Rotation)
	}
}

func TestRootSpinAccumulates(t *testing.T) {
	w := NewAnimationWorld()
	a := NewAnimator(DefaultAnimatorConfig())
	for i := 0; i < 10; i++ {
		a.Tick(w, 0)
	}
	want := mgl64.QuatRotate(0.04, scene.AxisY)
	if !w.Root.Rotation.ApproxEqualThreshold(want, 1e-9) {
		t.Fatalf("root rotation = %v, want %v", w.Root.Rotation, want)
	}
}

func TestMercuryAndVenusAtElapsed3Point6(t *testing.T) {
	w := NewAnimationWorld()
	b := NewBuilder(DefaultBuilderConfig())
	for _, def := range []*model.BodyDefinition{
		{ID: "mercury", Kind: model.KindPlanet, DisplayScale: 0.35, OrbitPeriod: model.Period(14.4)},
		{ID: "venus", Kind: model.KindPlanet, DisplayScale: 0.87, OrbitPeriod: model.Period(37.2)},
	} {
		if _, err := b.Build(ctxBG, def); err != nil {
			t.Fatalf("Build %s: %v", def.ID, err)
		}
	}
	b.Apply(ctxBG, w)
	stillAnimator().Tick(w, 3.6)

	mercury, _ := w.Orbit("mercury")
	venus, _ := w.Orbit("venus")
	if rem := math.Mod(mercury.Angle, 2*math.Pi); rem > 1e-9 && 2*math.Pi-rem > 1e-9 {
		t.Fatalf("mercury angle %v should be a whole turn", mercury.Angle)
	}
	if math.Abs(venus.Angle-2.432) > 1e-3 {
		t.Fatalf("venus angle = %v, want ≈2.432", venus.Angle)
	}
	if !rotates(mercury.Node.Rotation, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}) {
		t.Fatalf("mercury pivot should be back at its start orientation")
	}
}

func TestMoonTransformComposesWithParent(t *testing.T) {
	w := NewAnimationWorld()
	b := NewBuilder(DefaultBuilderConfig())
	def := &model.BodyDefinition{
		ID: "earth", Kind: model.KindPlanet, DisplayScale: 0.91,
		BasePosition: model.Position{X: -19.42, Y: 4.74},
		OrbitPeriod:  model.Period(60),
		Moons:        []model.MoonDefinition{{ID: "moon", DisplayScale: 0.25, Distance: 2.5}},
	}
	if _, err := b.Build(ctxBG, def); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res := b.Apply(ctxBG, w); len(res.Installed) != 1 {
		t.Fatalf("Apply installed %v, errors %v", res.Installed, res.Errors)
	}
	a := NewAnimator(DefaultAnimatorConfig())
	for _, elapsed := range []float64{0.5, 3.3, 11.9} {
		a.Tick(w, elapsed)

		m, ok := w.Moon("moon")
		if !ok {
			t.Fatalf("moon orbit not registered")
		}
		theta := OrbitAngle(elapsed, 24, DefaultTimeCompression)
		want := m.Parent.WorldMatrix().Mul4(mgl64.HomogRotate3D(theta, scene.AxisX))
		if got := m.Node.WorldMatrix(); !got.ApproxEqualThreshold(want, 1e-9) {
			t.Fatalf("elapsed %v: moon pivot world matrix\n%v\nwant\n%v", elapsed, got, want)
		}
	}
}

func TestTickWithoutBodiesDoesNothing(t *testing.T) {
	stillAnimator().Tick(nil, 1)
	w := NewAnimationWorld()
	stillAnimator().Tick(w, 1)
	if !w.Root.Rotation.ApproxEqualThreshold(mgl64.QuatIdent(), 1e-12) {
		t.Fatalf("root should not spin with SpinPerFrame 0")
	}
}
