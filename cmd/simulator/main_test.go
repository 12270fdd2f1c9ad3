package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
)

// TestSimulateInnerPlanets runs the built-in system to elapsed 3.6, where
// mercury has completed a whole turn and venus is at about 2.432 rad.
func TestSimulateInnerPlanets(t *testing.T) {
	var out bytes.Buffer
	res, err := simulate(context.Background(), options{
		Duration:        3600 * time.Millisecond,
		Tick:            1200 * time.Millisecond,
		Accelerated:     true,
		Focus:           "earth",
		Bodies:          []string{"mercury", "venus", "iss"},
		Every:           1,
		TimeCompression: core.DefaultTimeCompression,
	}, logging.Noop(), &out)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	if res.Frames != 3 {
		t.Fatalf("frames = %d, want 3", res.Frames)
	}
	if math.Abs(res.Elapsed-3.6) > 1e-9 {
		t.Fatalf("elapsed = %v, want 3.6", res.Elapsed)
	}
	if got := res.Angles["mercury"]; math.Abs(got-2*math.Pi) > 1e-9 {
		t.Fatalf("mercury angle = %v, want 2π", got)
	}
	if got := res.Angles["venus"]; math.Abs(got-2.432) > 1e-3 {
		t.Fatalf("venus angle = %v, want ≈2.432", got)
	}
	if res.Focus.Phase != core.Focused || res.Focus.Target != "earth" {
		t.Fatalf("focus = %+v, want earth", res.Focus)
	}
	if _, ok := res.Positions["iss"]; !ok {
		t.Fatalf("iss should be positioned")
	}

	text := out.String()
	if strings.Count(text, "Following earth") != 3 {
		t.Fatalf("expected one header per frame:\n%s", text)
	}
	if !strings.Contains(text, "↳ mercury") || !strings.Contains(text, "↳ iss") {
		t.Fatalf("expected body lines:\n%s", text)
	}
}

func TestSimulatePrintsEveryNthFrame(t *testing.T) {
	var out bytes.Buffer
	res, err := simulate(context.Background(), options{
		Duration:        5 * time.Second,
		Tick:            time.Second,
		Accelerated:     true,
		Bodies:          []string{"earth"},
		Every:           2,
		TimeCompression: 1,
	}, logging.Noop(), &out)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Frames != 5 {
		t.Fatalf("frames = %d, want 5", res.Frames)
	}
	if got := strings.Count(out.String(), "↳ earth"); got != 2 {
		t.Fatalf("printed %d earth lines, want 2:\n%s", got, out.String())
	}
	if res.Focus.Phase != core.Unfocused {
		t.Fatalf("empty focus should leave the camera free, got %+v", res.Focus)
	}
}

func TestSimulateRegistryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bodies.json")
	doc := `{"bodies": [
		{"id": "sun", "kind": "star", "scale": 10},
		{"id": "vulcan", "scale": 0.5, "position": {"x": 5, "y": 0, "z": 0}}
	]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	res, err := simulate(context.Background(), options{
		Duration:        15 * time.Second,
		Tick:            15 * time.Second,
		Accelerated:     true,
		Registry:        path,
		TimeCompression: 4,
	}, logging.Noop(), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	// vulcan has no period, so it uses the 60-unit fallback: a whole turn at 15.
	if got := res.Angles["vulcan"]; math.Abs(got-2*math.Pi) > 1e-9 {
		t.Fatalf("vulcan angle = %v, want 2π", got)
	}
	if len(res.Positions) != 2 {
		t.Fatalf("positions = %v, want sun and vulcan", res.Positions)
	}
}

func TestSimulateRejectsBadOptions(t *testing.T) {
	if _, err := simulate(context.Background(), options{Tick: 0, TimeCompression: 4}, logging.Noop(), &bytes.Buffer{}); err == nil {
		t.Fatalf("zero tick should fail")
	}
	if _, err := simulate(context.Background(), options{Tick: time.Second}, logging.Noop(), &bytes.Buffer{}); err == nil {
		t.Fatalf("zero time compression should fail")
	}
	if _, err := simulate(context.Background(), options{Tick: time.Second, TimeCompression: 4, Registry: "bodies.yaml"}, logging.Noop(), &bytes.Buffer{}); err == nil {
		t.Fatalf("unknown registry format should fail")
	}
}

func TestSplitIDs(t *testing.T) {
	got := splitIDs(" earth, ,moon,")
	if len(got) != 2 || got[0] != "earth" || got[1] != "moon" {
		t.Fatalf("splitIDs = %v", got)
	}
}
