package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/assets"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/render"
	sim "github.com/signalsfoundry/orrery/internal/sim/state"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/timectrl"
)

const (
	orbitStep = 0.08
	zoomStep  = 1.15
)

func main() {
	cfg, err := ParseConfig(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	out := io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	log := logging.NewFromEnv(out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := observability.TracingConfigFromEnv(os.Getenv)
	tcfg.Output = out
	tracing, err := observability.SetupTracing(ctx, tcfg, log)
	if err != nil {
		log.Warn(ctx, "tracing disabled", logging.Err(err))
	} else {
		defer tracing.Shutdown(context.Background())
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "open terminal: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init terminal: %v\n", err)
		os.Exit(1)
	}
	screen.EnableMouse()
	screen.HideCursor()

	runErr := run(ctx, cfg, log, env{screen: screen})
	screen.Fini()
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

// env carries the pieces main owns so tests can substitute them.
type env struct {
	screen   tcell.Screen
	registry *prometheus.Registry
	clock    timectrl.Clock
}

// app is the viewer: one scene state, one renderer, one screen. All of its
// methods run on the frame goroutine.
type app struct {
	cfg      Config
	log      logging.Logger
	screen   tcell.Screen
	state    *sim.SceneState
	renderer *render.Renderer
	cue      *render.Cue
	clock    timectrl.Clock
	store    *kb.KnowledgeBase

	frames  *observability.FrameCollector
	assets  *observability.AssetCollector
	buttons tcell.ButtonMask
}

func newApp(ctx context.Context, cfg Config, log logging.Logger, e env) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}
	if e.registry == nil {
		e.registry = prometheus.NewRegistry()
	}
	if e.clock == nil {
		e.clock = timectrl.NewWallClock()
	}

	frames, err := observability.NewFrameCollector(e.registry)
	if err != nil {
		return nil, fmt.Errorf("frame metrics: %w", err)
	}
	assetMetrics, err := observability.NewAssetCollector(e.registry)
	if err != nil {
		return nil, fmt.Errorf("asset metrics: %w", err)
	}

	store := kb.NewKnowledgeBase()
	defs := kb.DefaultBodies()
	if cfg.Registry != "" {
		if defs, err = kb.LoadFile(cfg.Registry); err != nil {
			return nil, err
		}
	}
	if _, err := kb.Populate(store, defs); err != nil {
		return nil, fmt.Errorf("populate registry: %w", err)
	}
	log.Info(ctx, "registry loaded", logging.Int("bodies", store.Len()), logging.String("source", registrySource(cfg)))

	bopts := []core.BuilderOption{
		core.WithDefinitions(store),
		core.WithAssetRecorder(assetMetrics),
		core.WithBuilderLogger(log),
	}
	if cfg.Textures != "" {
		loader := assets.NewLoader(os.DirFS(cfg.Textures), assets.WithLogger(log), assets.WithRecorder(assetMetrics))
		bopts = append(bopts, core.WithTextures(loader))
	}
	builder := core.NewBuilder(core.DefaultBuilderConfig(), bopts...)

	animCfg := core.DefaultAnimatorConfig()
	animCfg.TimeCompression = cfg.TimeCompression

	cue := render.NewCue(log)
	if !cfg.Mute {
		if err := cue.Init(); err != nil {
			log.Info(ctx, "audio unavailable; countdown cue disabled", logging.Err(err))
		}
	}
	focusCfg := core.DefaultFocusConfig()
	focusCfg.FramesPerCount = cfg.FramesPerCount()
	focusCfg.SmoothingRate = cfg.Smoothing
	focus := core.NewFocusController(focusCfg)
	focus.OnCount = cue.Countdown

	renderer := render.NewRenderer(e.screen)
	renderer.SetFullscreen(cfg.Fullscreen)

	state := sim.NewSceneState(store, nil, log,
		sim.WithBuilder(builder),
		sim.WithAnimator(core.NewAnimator(animCfg)),
		sim.WithFocusController(focus),
		sim.WithDefaultFocus(cfg.Focus),
		sim.WithMetricsRecorder(frames),
		sim.WithPendingRecorder(assetMetrics),
	)
	state.SetAspect(renderer.Aspect())

	return &app{
		cfg:      cfg,
		log:      log,
		screen:   e.screen,
		state:    state,
		renderer: renderer,
		cue:      cue,
		clock:    e.clock,
		store:    store,
		frames:   frames,
		assets:   assetMetrics,
	}, nil
}

func registrySource(cfg Config) string {
	if cfg.Registry == "" {
		return "built-in"
	}
	return cfg.Registry
}

func (a *app) close() {
	a.state.Close()
	a.cue.Close()
}

// step advances the scene to the clock's elapsed time and draws it.
func (a *app) step(ctx context.Context) error {
	elapsed := a.clock.Elapsed()
	a.state.SetAspect(a.renderer.Aspect())
	if err := a.state.Frame(ctx, elapsed); err != nil {
		return err
	}
	world := a.state.World()
	if sun, ok := world.Body("sun"); ok {
		a.renderer.Light = sun.Node.WorldPosition()
	}
	bodies, _, _, _ := world.Counts()
	a.renderer.Draw(world.Root, a.state.Camera(), render.HUD{
		Label:  a.state.Focus().Label(),
		Status: render.Status(elapsed, bodies),
	})
	return nil
}

// handle applies one terminal event and reports whether the viewer should quit.
func (a *app) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
		a.state.SetAspect(a.renderer.Aspect())
	case *tcell.EventKey:
		return a.key(ev.Key(), ev.Rune())
	case *tcell.EventMouse:
		x, y := ev.Position()
		a.mouse(ev.Buttons(), x, y)
	}
	return false
}

func (a *app) key(k tcell.Key, r rune) bool {
	switch k {
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyEscape:
		a.renderer.SetFullscreen(false)
	case tcell.KeyLeft:
		a.state.Orbit(-orbitStep, 0)
	case tcell.KeyRight:
		a.state.Orbit(orbitStep, 0)
	case tcell.KeyUp:
		a.state.Orbit(0, orbitStep)
	case tcell.KeyDown:
		a.state.Orbit(0, -orbitStep)
	case tcell.KeyRune:
		switch r {
		case 'q', 'Q':
			return true
		case 's', 'S', ' ':
			a.state.RequestRelease()
		case 'f', 'F':
			a.renderer.ToggleFullscreen()
		case '+', '=':
			a.state.Zoom(1 / zoomStep)
		case '-', '_':
			a.state.Zoom(zoomStep)
		}
	}
	return false
}

// mouse picks on the press edge of the primary button only.
func (a *app) mouse(buttons tcell.ButtonMask, x, y int) {
	pressed := buttons&tcell.Button1 != 0 && a.buttons&tcell.Button1 == 0
	a.buttons = buttons
	if !pressed {
		return
	}
	nx, ny, ok := a.renderer.CellToNDC(x, y)
	if !ok {
		return
	}
	if id, ok := a.state.SelectAt(nx, ny); ok {
		a.log.Info(context.Background(), "body picked", logging.Body(id), logging.Vec("camera", a.state.Camera().Position))
	}
}

// loop paces frames with a rate limiter and drains input between them.
func (a *app) loop(ctx context.Context, events <-chan tcell.Event) error {
	limiter := rate.NewLimiter(rate.Limit(a.cfg.FPS), 1)
	for n := 0; a.cfg.Frames == 0 || n < a.cfg.Frames; n++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	drain:
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if a.handle(ev) {
					return nil
				}
			default:
				break drain
			}
		}
		if err := a.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, cfg Config, log logging.Logger, e env) error {
	a, err := newApp(ctx, cfg, log, e)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Watch {
		w := kb.NewWatcher(cfg.Registry, a.store, log)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Warn(ctx, "registry watcher stopped", logging.Err(err))
			}
		}()
	}

	if srv := serveMetrics(cfg.MetricsAddr, a.frames, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	events := make(chan tcell.Event, 64)
	go pollEvents(ctx, e.screen, events)

	log.Info(ctx, "viewer started",
		logging.Float("fps", cfg.FPS),
		logging.Float("time_compression", cfg.TimeCompression),
		logging.String("focus", cfg.Focus),
	)
	err = a.loop(ctx, events)
	log.Info(ctx, "viewer stopped", logging.String("state", a.state.String()))
	return err
}

// pollEvents forwards terminal events until the screen is finalised.
func pollEvents(ctx context.Context, screen tcell.Screen, out chan<- tcell.Event) {
	for {
		ev := screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func serveMetrics(addr string, collector *observability.FrameCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
