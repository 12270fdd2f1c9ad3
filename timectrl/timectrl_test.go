package timectrl

import (
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
	if got := tc.Elapsed(); got != 42 {
		t.Fatalf("Elapsed() = %v, want 42", got)
	}

	tc.SetTime(start)
	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("SetTime moved the clock backwards to %v", got)
	}
}

func TestTimeControllerStartDeliversFrames(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	var frames []Frame
	tc.AddListener(func(f Frame) { frames = append(frames, f) })

	<-tc.Start(15*time.Millisecond, nil)

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Index != uint64(i+1) {
			t.Fatalf("frame %d index = %d", i, f.Index)
		}
		if i > 0 && f.Elapsed <= frames[i-1].Elapsed {
			t.Fatalf("elapsed not increasing: %v then %v", frames[i-1].Elapsed, f.Elapsed)
		}
	}
}

func TestTimeControllerStopChannel(t *testing.T) {
	tc := NewTimeController(time.Unix(0, 0), time.Millisecond, RealTime)
	stop := make(chan struct{})
	done := tc.Start(0, stop)
	close(stop)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not stop")
	}
}

func TestStepClockAdvances(t *testing.T) {
	c := NewStepClock(0.5)
	if c.Elapsed() != 0 {
		t.Fatalf("new clock elapsed = %v", c.Elapsed())
	}
	c.Advance()
	if got := c.Advance(); got != 1 {
		t.Fatalf("Advance() = %v, want 1", got)
	}

	if NewStepClock(-1).Advance() != 0 {
		t.Fatalf("negative step should not move the clock")
	}
}

func TestWallClockNeverDecreases(t *testing.T) {
	base := time.Unix(1000, 0)
	now := base
	c := newWallClock(func() time.Time { return now })

	now = base.Add(2 * time.Second)
	if got := c.Elapsed(); got != 2 {
		t.Fatalf("Elapsed() = %v, want 2", got)
	}
	now = base.Add(time.Second)
	if got := c.Elapsed(); got != 2 {
		t.Fatalf("Elapsed() after a backwards step = %v, want 2", got)
	}
}
