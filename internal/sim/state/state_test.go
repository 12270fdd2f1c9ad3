package state

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
)

func moonDef(id string) model.MoonDefinition {
	return model.MoonDefinition{ID: id, Kind: model.KindMoon, DisplayScale: 0.25, Distance: 2.5}
}

func TestFrameRegistersBodiesAndFocusesDefault(t *testing.T) {
	s, _ := newTestState(t, kb.DefaultBodies())

	if got := s.Focus().Phase; got != core.Unfocused {
		t.Fatalf("phase before the first frame = %v", got)
	}
	step(t, s, 0)

	for _, id := range []string{"sun", "mercury", "earth", "moon", "iss", "phobos", "deimos", "saturn", "neptune"} {
		if _, ok := s.World().Body(id); !ok {
			t.Fatalf("%s should be registered after the first frame", id)
		}
	}
	focus := s.Focus()
	if focus.Phase != core.Focused || focus.Target != "earth" {
		t.Fatalf("focus = %+v, want Following earth", focus)
	}
	if focus.Label() != "Following earth" {
		t.Fatalf("label = %q", focus.Label())
	}
}

func TestDefaultFocusHappensOnce(t *testing.T) {
	s, _ := newTestState(t, []*model.BodyDefinition{planet("earth", 60)})
	step(t, s, 0)
	s.RequestRelease()
	for i := 0; i < 3; i++ {
		step(t, s, float64(i+1))
	}
	if s.Focus().Phase != core.Unfocused {
		t.Fatalf("release should finish after three frames, got %+v", s.Focus())
	}
	step(t, s, 10)
	if s.Focus().Phase != core.Unfocused {
		t.Fatalf("default focus must not re-engage after a release")
	}
}

func TestWithDefaultFocusDisabled(t *testing.T) {
	s, _ := newTestState(t, []*model.BodyDefinition{planet("earth", 60)}, WithDefaultFocus(""))
	step(t, s, 0)
	if s.Focus().Phase != core.Unfocused {
		t.Fatalf("auto-focus should be disabled, got %+v", s.Focus())
	}
}

func TestFrameAnimatesOrbits(t *testing.T) {
	s, _ := newTestState(t, []*model.BodyDefinition{planet("venus", 37.2)}, WithDefaultFocus(""))
	step(t, s, 3.6)
	o, ok := s.World().Orbit("venus")
	if !ok {
		t.Fatalf("venus orbit missing")
	}
	if math.Abs(o.Angle-2.432) > 1e-3 {
		t.Fatalf("venus angle = %v, want ≈2.432", o.Angle)
	}
}

func TestRegistryUpdateRebuildsAndKeepsFocus(t *testing.T) {
	s, store := newTestState(t, []*model.BodyDefinition{planet("earth", 60)})
	step(t, s, 0)

	updated := planet("earth", 30)
	updated.Moons = []model.MoonDefinition{moonDef("moon")}
	if err := store.ReplaceBody(updated); err != nil {
		t.Fatalf("ReplaceBody: %v", err)
	}
	step(t, s, 1)

	o, _ := s.World().Orbit("earth")
	if o.Period != 30 {
		t.Fatalf("earth period after update = %v, want 30", o.Period)
	}
	if _, ok := s.World().Body("moon"); !ok {
		t.Fatalf("moon should register with the updated definition")
	}
	if f := s.Focus(); f.Phase != core.Focused || f.Target != "earth" {
		t.Fatalf("focus should survive a rebuild, got %+v", f)
	}
}

func TestRegistryRemovalDropsFocus(t *testing.T) {
	s, store := newTestState(t, []*model.BodyDefinition{planet("earth", 60), planet("mars", 112.8)})
	step(t, s, 0)
	if err := store.RemoveBody("earth"); err != nil {
		t.Fatalf("RemoveBody: %v", err)
	}
	step(t, s, 1)

	if _, ok := s.World().Body("earth"); ok {
		t.Fatalf("earth should be gone")
	}
	if s.Focus().Phase != core.Unfocused {
		t.Fatalf("focus should drop when its target is removed, got %+v", s.Focus())
	}
	if _, ok := s.World().Body("mars"); !ok {
		t.Fatalf("mars should be untouched")
	}
}

func TestMoonReassignedByRegistryKeepsBothPlanets(t *testing.T) {
	earth, mars := planet("earth", 60), planet("mars", 112.8)
	mars.Moons = []model.MoonDefinition{moonDef("phobos")}
	s, store := newTestState(t, []*model.BodyDefinition{earth, mars})
	step(t, s, 0)

	earth, mars = planet("earth", 60), planet("mars", 112.8)
	earth.Moons = []model.MoonDefinition{moonDef("phobos")}
	if _, err := store.Sync([]*model.BodyDefinition{earth, mars}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	step(t, s, 1)
	step(t, s, 2)

	for _, id := range []string{"earth", "mars", "phobos"} {
		if _, ok := s.World().Body(id); !ok {
			t.Fatalf("%s should still be registered", id)
		}
	}
	if g, _ := s.World().GroupOf("phobos"); g != "earth" {
		t.Fatalf("phobos group = %q, want earth", g)
	}
	if groups := s.World().Groups(); len(groups) != 2 {
		t.Fatalf("groups = %v, want earth and mars", groups)
	}
	if f := s.Focus(); f.Phase != core.Focused || f.Target != "earth" {
		t.Fatalf("focus should stay on earth, got %+v", f)
	}
}

func TestSelectAndSelectAt(t *testing.T) {
	mars := planet("mars", 112.8)
	mars.BasePosition = model.Position{X: 30}
	s, _ := newTestState(t, []*model.BodyDefinition{planet("earth", 60), mars}, WithDefaultFocus(""))
	step(t, s, 0)

	if err := s.Select("pluto"); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("Select(pluto) = %v, want ErrUnknownBody", err)
	}

	body, _ := s.World().Body("mars")
	cam := s.Camera()
	cam.Position = body.Node.WorldPosition().Add(mgl64.Vec3{0, 0, 20})
	cam.LookAt(body.Node.WorldPosition())

	id, ok := s.SelectAt(0, 0)
	if !ok || id != "mars" {
		t.Fatalf("SelectAt centre = %q, %v; want mars", id, ok)
	}
	if f := s.Focus(); f.Target != "mars" {
		t.Fatalf("focus = %+v, want mars", f)
	}
	if _, ok := s.SelectAt(0.99, 0.99); ok {
		t.Fatalf("SelectAt empty corner should miss")
	}
	if f := s.Focus(); f.Target != "mars" {
		t.Fatalf("a miss must not change focus, got %+v", f)
	}
}

func TestOrbitAndZoomMoveCameraWhenUnfocused(t *testing.T) {
	s, _ := newTestState(t, nil)
	step(t, s, 0)
	before := s.Camera().Position
	dist := before.Sub(s.Camera().Target).Len()

	s.Orbit(0.5, 0)
	if s.Camera().Position.ApproxEqualThreshold(before, 1e-9) {
		t.Fatalf("Orbit should move the camera")
	}
	s.Zoom(0.5)
	if got := s.Camera().Position.Sub(s.Camera().Target).Len(); math.Abs(got-dist*0.5) > 1e-9 {
		t.Fatalf("distance after zoom = %v, want %v", got, dist*0.5)
	}
	step(t, s, 1)
	if got := s.Camera().Position.Sub(s.Camera().Target).Len(); math.Abs(got-dist*0.5) > 1e-9 {
		t.Fatalf("a frame should keep the zoomed distance, got %v", got)
	}
}

func TestCloseStopsFrames(t *testing.T) {
	store := kb.NewKnowledgeBase()
	s := NewSceneState(store, nil, logging.Noop())
	s.Close()
	if err := s.Frame(context.Background(), 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("Frame after Close = %v, want ErrClosed", err)
	}
	if err := store.AddBody(planet("earth", 60)); err != nil {
		t.Fatalf("AddBody after Close: %v", err)
	}
}
