// internal/sim/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/scene"
)

// Re-export focus errors so callers can depend on state.* instead of
// core.* directly if they want to.
var (
	// ErrUnknownBody indicates a selection of an id that is not a live body.
	ErrUnknownBody = core.ErrUnknownBody
	// ErrClosed indicates the scene state was closed.
	ErrClosed = errors.New("scene state closed")
)

// Selection sources reported to the metrics recorder.
const (
	SourcePick    = "pick"
	SourceDefault = "default"
	SourceCommand = "command"
)

// DefaultFocusTarget is focused automatically once it registers.
const DefaultFocusTarget = "earth"

// SceneState coordinates the registry, the animation world and the camera.
// Frame and the command methods must all be called from the frame
// goroutine; only registry events arrive from elsewhere.
type SceneState struct {
	store    *kb.KnowledgeBase
	world    *core.AnimationWorld
	builder  *core.Builder
	animator *core.Animator
	focus    *core.FocusController

	camera   *scene.Camera
	controls *scene.OrbitControls

	// mu guards queue and closed, which the registry's subscriber writes from
	// the watcher goroutine.
	mu          sync.Mutex
	queue       []kb.Event
	closed      bool
	unsubscribe func()

	defaultFocus string
	defaultDone  bool

	frame uint64

	// log is an optional structured logger for scene-level events.
	log      logging.Logger
	// frameLog throttles warnings that would otherwise repeat every frame.
	frameLog logging.Logger

	// metrics is an optional recorder for Prometheus-friendly gauges.
	metrics SceneMetricsRecorder
	pending PendingRecorder
	tracer  trace.Tracer
}

// SceneMetricsRecorder receives per-frame observations.
type SceneMetricsRecorder interface {
	ObserveFrame(d time.Duration)
	SetWorldCounts(bodies, orbits, moons, satellites int)
	SetFocusPhase(phase int)
	IncDanglingFocus()
	IncFocusSelection(source string)
}

// PendingRecorder receives the number of builds waiting on textures.
type PendingRecorder interface {
	SetPendingBuilds(count int)
}

// SceneStateOption customises SceneState construction.
type SceneStateOption func(*SceneState)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m SceneMetricsRecorder) SceneStateOption {
	return func(s *SceneState) {
		s.metrics = m
	}
}

// WithPendingRecorder reports the pending build count each frame.
func WithPendingRecorder(p PendingRecorder) SceneStateOption {
	return func(s *SceneState) {
		s.pending = p
	}
}

// WithBuilder replaces the default builder, e.g. to enable textures.
func WithBuilder(b *core.Builder) SceneStateOption {
	return func(s *SceneState) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithAnimator replaces the default animator.
func WithAnimator(a *core.Animator) SceneStateOption {
	return func(s *SceneState) {
		if a != nil {
			s.animator = a
		}
	}
}

// WithFocusController replaces the default focus controller.
func WithFocusController(f *core.FocusController) SceneStateOption {
	return func(s *SceneState) {
		if f != nil {
			s.focus = f
		}
	}
}

// WithCamera sets the camera the focus controller drives.
func WithCamera(cam *scene.Camera) SceneStateOption {
	return func(s *SceneState) {
		if cam != nil {
			s.camera = cam
		}
	}
}

// WithDefaultFocus changes the body focused automatically once it
// registers. An empty id disables auto-focus.
func WithDefaultFocus(id string) SceneStateOption {
	return func(s *SceneState) {
		s.defaultFocus = id
	}
}

// NewSceneState subscribes to store and queues a build for every body it
// already holds. The first Frame call starts registering them.
func NewSceneState(store *kb.KnowledgeBase, world *core.AnimationWorld, log logging.Logger, opts ...SceneStateOption) *SceneState {
	if log == nil {
		log = logging.Noop()
	}
	if world == nil {
		world = core.NewAnimationWorld()
	}
	s := &SceneState{
		store:        store,
		world:        world,
		animator:     core.NewAnimator(core.DefaultAnimatorConfig()),
		focus:        core.NewFocusController(core.DefaultFocusConfig()),
		defaultFocus: DefaultFocusTarget,
		log:          log,
		frameLog:     logging.Throttle(log, time.Second),
		tracer:       otel.Tracer("github.com/signalsfoundry/orrery/internal/sim/state"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.builder == nil {
		var bopts []core.BuilderOption
		if store != nil {
			bopts = append(bopts, core.WithDefinitions(store))
		}
		bopts = append(bopts, core.WithBuilderLogger(log))
		s.builder = core.NewBuilder(core.DefaultBuilderConfig(), bopts...)
	}
	if s.camera == nil {
		s.camera = scene.NewCamera(75, 1, 0.1, 2000)
		s.camera.Position = mgl64.Vec3{0, 30, 30}
		s.camera.LookAt(mgl64.Vec3{})
	}
	s.controls = scene.NewOrbitControls(s.camera)

	if store != nil {
		s.unsubscribe = store.Subscribe(s.enqueue)
		for _, def := range store.ListBodies() {
			s.enqueue(kb.Event{Type: kb.EventBodyAdded, ID: def.ID, Body: def})
		}
	}
	s.recordMetrics()
	return s
}

// Close stops listening to the registry.
func (s *SceneState) Close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *SceneState) enqueue(ev kb.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, ev)
}

func (s *SceneState) drain() []kb.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue
	s.queue = nil
	return q
}

// World returns the animation world. Frame-goroutine use only.
func (s *SceneState) World() *core.AnimationWorld { return s.world }

// Camera returns the camera driven by the focus controller.
func (s *SceneState) Camera() *scene.Camera { return s.camera }

// Controls returns the orbit controls.
func (s *SceneState) Controls() *scene.OrbitControls { return s.controls }

// Focus returns a copy of the focus state.
func (s *SceneState) Focus() core.FocusState { return s.focus.State() }

// FrameIndex returns the number of frames stepped so far.
func (s *SceneState) FrameIndex() uint64 { return s.frame }

// Frame advances the scene to elapsed seconds: registry changes, finished
// builds, default focus, animation, camera follow and metrics, in that
// order. Errors from individual steps are logged, not returned; only a
// closed state is an error.
func (s *SceneState) Frame(ctx context.Context, elapsed float64) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	start := time.Now()
	s.frame++
	ctx = logging.ContextWithFrame(ctx, s.frame)
	log := logging.WithFrame(ctx, s.log)

	if events := s.drain(); len(events) > 0 {
		s.applyRegistryEvents(ctx, log, events)
	}
	if res := s.builder.Apply(ctx, s.world); len(res.Installed) > 0 || len(res.Stale) > 0 {
		log.Debug(ctx, "builds applied",
			logging.Any("installed", res.Installed),
			logging.Any("stale", res.Stale),
			logging.Int("errors", len(res.Errors)),
		)
	}

	s.applyDefaultFocus(ctx, log)
	s.animator.Tick(s.world, elapsed)

	if err := s.focus.Tick(s.world, s.camera, s.controls, elapsed); err != nil {
		var dangling *core.DanglingFocusError
		if errors.As(err, &dangling) {
			log.Info(ctx, "focus target vanished; focus released", logging.String("target", dangling.Target))
			if s.metrics != nil {
				s.metrics.IncDanglingFocus()
			}
		} else {
			logging.WithFrame(ctx, s.frameLog).Warn(ctx, "focus tick failed", logging.Err(err))
		}
	}
	if s.focus.State().Phase == core.Unfocused {
		s.controls.Apply(s.camera)
	}

	if s.metrics != nil {
		s.metrics.ObserveFrame(time.Since(start))
	}
	s.recordMetrics()
	return nil
}

func (s *SceneState) applyRegistryEvents(ctx context.Context, log logging.Logger, events []kb.Event) {
	ctx, span := s.tracer.Start(ctx, "state.ApplyRegistryEvents", trace.WithAttributes(attribute.Int("events", len(events))))
	defer span.End()

	for _, ev := range events {
		switch ev.Type {
		case kb.EventBodyRemoved:
			s.builder.Cancel(ev.ID)
			if s.world.Remove(ev.ID) {
				log.Info(ctx, "body removed", logging.Body(ev.ID))
			}
		case kb.EventBodyAdded, kb.EventBodyUpdated:
			if ev.Body == nil {
				continue
			}
			if _, err := s.builder.Build(ctx, ev.Body); err != nil {
				span.RecordError(err)
				log.Warn(ctx, "body build failed", logging.Body(ev.ID), logging.Err(err))
			}
		}
	}
}

func (s *SceneState) applyDefaultFocus(ctx context.Context, log logging.Logger) {
	if s.defaultDone || s.defaultFocus == "" {
		return
	}
	if s.focus.State().Phase != core.Unfocused {
		s.defaultDone = true
		return
	}
	if _, ok := s.world.Body(s.defaultFocus); !ok {
		return
	}
	s.defaultDone = true
	if err := s.focus.Select(s.world, s.defaultFocus); err != nil {
		log.Warn(ctx, "default focus failed", logging.String("target", s.defaultFocus), logging.Err(err))
		return
	}
	log.Info(ctx, "default focus", logging.String("target", s.defaultFocus))
	if s.metrics != nil {
		s.metrics.IncFocusSelection(SourceDefault)
	}
}

// Select focuses a body by id.
func (s *SceneState) Select(id string) error {
	if err := s.focus.Select(s.world, id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncFocusSelection(SourceCommand)
	}
	return nil
}

// SelectAt picks the body under the NDC point and focuses it. A miss
// leaves focus unchanged.
func (s *SceneState) SelectAt(ndcX, ndcY float64) (string, bool) {
	id, ok := core.Pick(s.world, s.camera, ndcX, ndcY)
	if !ok {
		return "", false
	}
	if err := s.focus.Select(s.world, id); err != nil {
		return "", false
	}
	if s.metrics != nil {
		s.metrics.IncFocusSelection(SourcePick)
	}
	return id, true
}

// RequestRelease starts the release countdown.
func (s *SceneState) RequestRelease() {
	s.focus.RequestRelease()
}

// Orbit rotates the camera around its pivot.
func (s *SceneState) Orbit(dYaw, dPitch float64) {
	s.controls.SyncFrom(s.camera)
	s.controls.Orbit(dYaw, dPitch)
	s.controls.Apply(s.camera)
}

// Zoom scales the camera's distance from its pivot.
func (s *SceneState) Zoom(factor float64) {
	s.controls.SyncFrom(s.camera)
	s.controls.Zoom(factor)
	s.controls.Apply(s.camera)
}

// SetAspect updates the camera aspect ratio after a resize.
func (s *SceneState) SetAspect(aspect float64) {
	if aspect > 0 {
		s.camera.Aspect = aspect
	}
}

func (s *SceneState) recordMetrics() {
	if s.metrics != nil {
		bodies, orbits, moons, tracks := s.world.Counts()
		s.metrics.SetWorldCounts(bodies, orbits, moons, tracks)
		s.metrics.SetFocusPhase(int(s.focus.State().Phase))
	}
	if s.pending != nil {
		s.pending.SetPendingBuilds(len(s.builder.Pending()))
	}
}

// String is used in debug logging.
func (s *SceneState) String() string {
	bodies, orbits, moons, tracks := s.world.Counts()
	return fmt.Sprintf("frame=%d bodies=%d orbits=%d moons=%d satellites=%d focus=%s",
		s.frame, bodies, orbits, moons, tracks, s.focus.State().Phase)
}
