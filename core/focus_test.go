package core

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/scene"
)

func focusWorld(t *testing.T, ids ...string) *AnimationWorld {
	t.Helper()
	w := NewAnimationWorld()
	for i, id := range ids {
		inst, _, _ := planetInstallation(id, 60, mgl64.Vec3{float64(10 * (i + 1)), 0, 0})
		if err := w.Install(inst); err != nil {
			t.Fatalf("Install %s: %v", id, err)
		}
	}
	return w
}

func wantState(t *testing.T, f *FocusController, phase FocusPhase, target string, remaining int) {
	t.Helper()
	got := f.State()
	if got.Phase != phase || got.Target != target || (phase == Releasing && got.Remaining != remaining) {
		t.Fatalf("state = %+v, want %v/%q/%d", got, phase, target, remaining)
	}
}

func TestFocusSequence(t *testing.T) {
	w := focusWorld(t, "earth", "mars")
	f := NewFocusController(DefaultFocusConfig())
	cam := scene.NewCamera(75, 1, 0.1, 1000)

	wantState(t, f, Unfocused, "", 0)
	if err := f.Select(w, "earth"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	wantState(t, f, Focused, "earth", 0)

	f.RequestRelease()
	wantState(t, f, Releasing, "earth", 3)

	for _, want := range []int{2, 1} {
		if err := f.Tick(w, cam, nil, 0); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		wantState(t, f, Releasing, "earth", want)
	}
	if err := f.Tick(w, cam, nil, 0); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	wantState(t, f, Unfocused, "", 0)
}

func TestSelectDuringReleaseCancelsCountdown(t *testing.T) {
	w := focusWorld(t, "earth", "mars")
	f := NewFocusController(DefaultFocusConfig())

	if err := f.Select(w, "earth"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	f.RequestRelease()
	_ = f.Tick(w, nil, nil, 0)
	wantState(t, f, Releasing, "earth", 2)

	if err := f.Select(w, "mars"); err != nil {
		t.Fatalf("Select mars: %v", err)
	}
	wantState(t, f, Focused, "mars", 0)
	for i := 0; i < 5; i++ {
		_ = f.Tick(w, nil, nil, 0)
	}
	wantState(t, f, Focused, "mars", 0)
}

func TestRequestReleaseRestartsAndIsIgnoredWhenUnfocused(t *testing.T) {
	w := focusWorld(t, "earth")
	f := NewFocusController(DefaultFocusConfig())

	f.RequestRelease()
	wantState(t, f, Unfocused, "", 0)

	if err := f.Select(w, "earth"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	f.RequestRelease()
	_ = f.Tick(w, nil, nil, 0)
	wantState(t, f, Releasing, "earth", 2)
	f.RequestRelease()
	wantState(t, f, Releasing, "earth", 3)
}

func TestSelectUnknownLeavesStateUnchanged(t *testing.T) {
	w := focusWorld(t, "earth")
	f := NewFocusController(DefaultFocusConfig())
	if err := f.Select(w, "earth"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := f.Select(w, "vulcan"); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("Select(vulcan) = %v, want ErrUnknownBody", err)
	}
	wantState(t, f, Focused, "earth", 0)
}

func TestFramesPerCountStretchesCountdown(t *testing.T) {
	w := focusWorld(t, "earth")
	cfg := DefaultFocusConfig()
	cfg.FramesPerCount = 4
	f := NewFocusController(cfg)
	var counts []int
	f.OnCount = func(k int) { counts = append(counts, k) }

	if err := f.Select(w, "earth"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	f.RequestRelease()
	ticks := 0
	for f.State().Phase != Unfocused {
		_ = f.Tick(w, nil, nil, 0)
		ticks++
		if ticks > 100 {
			t.Fatalf("countdown never finished")
		}
	}
	if ticks != 12 {
		t.Fatalf("release took %d ticks, want 12", ticks)
	}
	if len(counts) != 3 || counts[0] != 3 || counts[1] != 2 || counts[2] != 1 {
		t.Fatalf("count callbacks = %v, want [3 2 1]", counts)
	}
}

func TestRemovedTargetDropsFocus(t *testing.T) {
	w := focusWorld(t, "earth")
	f := NewFocusController(DefaultFocusConfig())
	cam := scene.NewCamera(75, 1, 0.1, 1000)
	if err := f.Select(w, "earth"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	w.Remove("earth")

	err := f.Tick(w, cam, nil, 1)
	var dangling *DanglingFocusError
	if !errors.As(err, &dangling) || dangling.Target != "earth" {
		t.Fatalf("Tick = %v, want DanglingFocusError for earth", err)
	}
	wantState(t, f, Unfocused, "", 0)
	if err := f.Tick(w, cam, nil, 2); err != nil {
		t.Fatalf("Tick after recovery = %v, want nil", err)
	}
}

func TestCameraConvergesOnOffset(t *testing.T) {
	w := focusWorld(t, "earth")
	f := NewFocusController(DefaultFocusConfig())
	cam := scene.NewCamera(75, 1, 0.1, 1000)
	cam.Position = mgl64.Vec3{0, 30, 30}
	controls := scene.NewOrbitControls(cam)

	if err := f.Select(w, "earth"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	earth, _ := w.Body("earth")
	target := earth.Node.WorldPosition()
	desired := target.Add(mgl64.Vec3{0, 15, 15})

	before := cam.Position.Sub(desired).Len()
	if err := f.Tick(w, cam, controls, 0); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	after := cam.Position.Sub(desired).Len()
	if diff := before*0.9 - after; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("one tick should close 10%% of the gap: before %v after %v", before, after)
	}
	if !cam.Target.ApproxEqualThreshold(target, 1e-9) || !controls.Pivot.ApproxEqualThreshold(target, 1e-9) {
		t.Fatalf("camera and controls should look at the target")
	}

	for i := 0; i < 300; i++ {
		_ = f.Tick(w, cam, controls, 0)
	}
	if !cam.Position.ApproxEqualThreshold(desired, 1e-6) {
		t.Fatalf("camera at %v, want %v", cam.Position, desired)
	}
}

func TestLastReleaseFrameStillFollows(t *testing.T) {
	w := focusWorld(t, "earth")
	f := NewFocusController(DefaultFocusConfig())
	cam := scene.NewCamera(75, 1, 0.1, 1000)
	cam.Position = mgl64.Vec3{0, 60, 60}
	controls := scene.NewOrbitControls(cam)

	if err := f.Select(w, "earth"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	f.RequestRelease()
	for i := 0; i < 2; i++ {
		_ = f.Tick(w, cam, controls, 0)
	}
	wantState(t, f, Releasing, "earth", 1)

	earth, _ := w.Body("earth")
	target := earth.Node.WorldPosition()
	desired := target.Add(mgl64.Vec3{0, 15, 15})
	controls.Pivot = mgl64.Vec3{}
	before := cam.Position.Sub(desired).Len()

	if err := f.Tick(w, cam, controls, 0); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	wantState(t, f, Unfocused, "", 0)
	if after := cam.Position.Sub(desired).Len(); after >= before {
		t.Fatalf("camera should keep closing on the target: before %v after %v", before, after)
	}
	if !controls.Pivot.ApproxEqualThreshold(target, 1e-9) {
		t.Fatalf("controls pivot = %v, want %v", controls.Pivot, target)
	}
}

func TestSmoothingRateUsesFrameDelta(t *testing.T) {
	w := focusWorld(t, "earth")
	cfg := DefaultFocusConfig()
	cfg.SmoothingRate = 5
	f := NewFocusController(cfg)
	cam := scene.NewCamera(75, 1, 0.1, 1000)
	start := mgl64.Vec3{100, 100, 100}
	cam.Position = start

	if err := f.Select(w, "earth"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	// The first tick has no previous time, so nothing moves.
	_ = f.Tick(w, cam, nil, 1)
	if !cam.Position.ApproxEqualThreshold(start, 1e-12) {
		t.Fatalf("camera moved on the first smoothed tick: %v", cam.Position)
	}
	_ = f.Tick(w, cam, nil, 1.5)
	if cam.Position.ApproxEqualThreshold(start, 1e-6) {
		t.Fatalf("camera should move once time advances")
	}
}

func TestFocusLabel(t *testing.T) {
	cases := []struct {
		state FocusState
		want  string
	}{
		{FocusState{}, ""},
		{FocusState{Phase: Focused, Target: "saturn"}, "Following saturn"},
		{FocusState{Phase: Releasing, Target: "saturn", Remaining: 2}, "Stopping in 2"},
	}
	for _, tc := range cases {
		if got := tc.state.Label(); got != tc.want {
			t.Fatalf("Label(%+v) = %q, want %q", tc.state, got, tc.want)
		}
	}
}
