package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	sim "github.com/signalsfoundry/orrery/internal/sim/state"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/timectrl"
)

// options are the simulator's flags.
type options struct {
	Duration        time.Duration
	Tick            time.Duration
	Accelerated     bool
	Registry        string
	Focus           string
	Bodies          []string
	Every           int
	TimeCompression float64
}

// summary is what a run leaves behind, for callers and tests.
type summary struct {
	Frames    uint64
	Elapsed   float64
	Angles    map[string]float64
	Positions map[string]mgl64.Vec3
	Focus     core.FocusState
}

func main() {
	opts := options{}
	var bodies string
	flag.DurationVar(&opts.Duration, "duration", 60*time.Second, "total simulated duration")
	flag.DurationVar(&opts.Tick, "tick", time.Second, "simulated time per frame")
	flag.BoolVar(&opts.Accelerated, "accelerated", true, "run in accelerated mode (vs real-time)")
	flag.StringVar(&opts.Registry, "registry", "", "JSON or TOML body registry (default: built-in solar system)")
	flag.StringVar(&opts.Focus, "focus", sim.DefaultFocusTarget, "body to follow; empty disables")
	flag.StringVar(&bodies, "bodies", "mercury,venus,earth,moon,iss", "comma-separated body ids to print")
	flag.IntVar(&opts.Every, "every", 1, "print every Nth frame")
	flag.Float64Var(&opts.TimeCompression, "time-compression", core.DefaultTimeCompression, "divides every orbital period")
	flag.Parse()
	opts.Bodies = splitIDs(bodies)

	log := logging.NewFromEnv(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if tracing, err := observability.SetupTracing(ctx, observability.TracingConfigFromEnv(os.Getenv), log); err != nil {
		log.Warn(ctx, "tracing disabled", logging.Err(err))
	} else {
		defer tracing.Shutdown(context.Background())
	}

	if _, err := simulate(ctx, opts, log, os.Stdout); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// simulate steps a scene state from a TimeController and prints the
// selected bodies' world positions.
func simulate(ctx context.Context, opts options, log logging.Logger, out io.Writer) (summary, error) {
	if opts.Tick <= 0 {
		return summary{}, fmt.Errorf("tick must be > 0, got %s", opts.Tick)
	}
	if opts.TimeCompression <= 0 {
		return summary{}, fmt.Errorf("time-compression must be > 0, got %v", opts.TimeCompression)
	}
	if opts.Every < 1 {
		opts.Every = 1
	}

	defs := kb.DefaultBodies()
	if opts.Registry != "" {
		var err error
		if defs, err = kb.LoadFile(opts.Registry); err != nil {
			return summary{}, err
		}
	}
	store := kb.NewKnowledgeBase()
	if _, err := kb.Populate(store, defs); err != nil {
		return summary{}, err
	}

	animCfg := core.DefaultAnimatorConfig()
	animCfg.TimeCompression = opts.TimeCompression
	state := sim.NewSceneState(store, nil, log,
		sim.WithAnimator(core.NewAnimator(animCfg)),
		sim.WithDefaultFocus(opts.Focus),
	)
	defer state.Close()

	mode := timectrl.RealTime
	if opts.Accelerated {
		mode = timectrl.Accelerated
	}
	start := animCfg.SatelliteEpoch
	tc := timectrl.NewTimeController(start, opts.Tick, mode)

	var frameErr error
	tc.AddListener(func(f timectrl.Frame) {
		if frameErr != nil {
			return
		}
		if err := state.Frame(ctx, f.Elapsed); err != nil {
			frameErr = err
			return
		}
		if f.Index%uint64(opts.Every) != 0 {
			return
		}
		fmt.Fprintf(out, "[%8.2fs] %s\n", f.Elapsed, state.Focus().Label())
		for _, id := range opts.Bodies {
			body, ok := state.World().Body(id)
			if !ok {
				continue
			}
			p := body.Node.WorldPosition()
			line := fmt.Sprintf("  ↳ %-10s @ (%8.2f, %8.2f, %8.2f)", id, p.X(), p.Y(), p.Z())
			if o, ok := state.World().Orbit(id); ok {
				line += fmt.Sprintf(" angle=%.3f", o.Angle)
			} else if m, ok := state.World().Moon(id); ok {
				line += fmt.Sprintf(" angle=%.3f", m.Angle)
			}
			fmt.Fprintln(out, line)
		}
	})

	log.Info(ctx, "starting simulation",
		logging.Duration("duration", opts.Duration),
		logging.Duration("tick", opts.Tick),
		logging.String("mode", mode.String()),
	)
	<-tc.Start(opts.Duration, ctx.Done())
	if frameErr != nil {
		return summary{}, frameErr
	}

	res := summary{
		Frames:    state.FrameIndex(),
		Elapsed:   tc.Elapsed(),
		Angles:    make(map[string]float64),
		Positions: make(map[string]mgl64.Vec3),
		Focus:     state.Focus(),
	}
	world := state.World()
	for _, id := range world.BodyIDs() {
		body, ok := world.Body(id)
		if !ok {
			continue
		}
		res.Positions[id] = body.Node.WorldPosition()
		if o, ok := world.Orbit(id); ok {
			res.Angles[id] = o.Angle
		} else if m, ok := world.Moon(id); ok {
			res.Angles[id] = m.Angle
		}
	}
	log.Info(ctx, "simulation complete",
		logging.Int("frames", int(res.Frames)),
		logging.Float("elapsed", res.Elapsed),
		logging.Int("bodies", len(res.Positions)),
	)
	return res, nil
}
