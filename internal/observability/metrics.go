package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FrameCollector bundles Prometheus metrics for the frame loop and the
// animation world.
type FrameCollector struct {
	gatherer prometheus.Gatherer

	Frames         prometheus.Counter
	FrameDurations prometheus.Histogram

	Bodies     prometheus.Gauge
	Orbits     prometheus.Gauge
	Moons      prometheus.Gauge
	Satellites prometheus.Gauge

	FocusPhase     prometheus.Gauge
	DanglingFocus  prometheus.Counter
	FocusSelection *prometheus.CounterVec
}

// NewFrameCollector registers frame metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewFrameCollector(reg prometheus.Registerer) (*FrameCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_frames_total",
		Help: "Total number of animation frames stepped.",
	}), "orrery_frames_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orrery_frame_duration_seconds",
		Help:    "Wall time spent stepping one frame, excluding drawing.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "orrery_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	bodies, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_bodies",
		Help: "Current number of focusable bodies registered in the world.",
	}), "orrery_bodies")
	if err != nil {
		return nil, err
	}
	orbits, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_orbits",
		Help: "Current number of orbiting bodies animated each frame.",
	}), "orrery_orbits")
	if err != nil {
		return nil, err
	}
	moons, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_moon_orbits",
		Help: "Current number of moon orbits animated each frame.",
	}), "orrery_moon_orbits")
	if err != nil {
		return nil, err
	}
	satellites, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_satellites",
		Help: "Current number of SGP4-tracked satellites.",
	}), "orrery_satellites")
	if err != nil {
		return nil, err
	}

	phase, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_focus_phase",
		Help: "Focus controller phase: 0 unfocused, 1 focused, 2 releasing.",
	}), "orrery_focus_phase")
	if err != nil {
		return nil, err
	}
	dangling, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_dangling_focus_total",
		Help: "Times the focus target vanished and focus was dropped.",
	}), "orrery_dangling_focus_total")
	if err != nil {
		return nil, err
	}
	selections, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_focus_selections_total",
		Help: "Focus selections, labeled by how they were made.",
	}, []string{"source"}), "orrery_focus_selections_total")
	if err != nil {
		return nil, err
	}

	return &FrameCollector{
		gatherer:       gatherer,
		Frames:         frames,
		FrameDurations: durations,
		Bodies:         bodies,
		Orbits:         orbits,
		Moons:          moons,
		Satellites:     satellites,
		FocusPhase:     phase,
		DanglingFocus:  dangling,
		FocusSelection: selections,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FrameCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *FrameCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFrame counts a frame and records how long it took.
func (c *FrameCollector) ObserveFrame(d time.Duration) {
	if c == nil {
		return
	}
	if c.Frames != nil {
		c.Frames.Inc()
	}
	if c.FrameDurations != nil {
		c.FrameDurations.Observe(d.Seconds())
	}
}

// SetWorldCounts satisfies the scene state's metrics recorder so gauges
// follow registrations and removals.
func (c *FrameCollector) SetWorldCounts(bodies, orbits, moons, satellites int) {
	if c == nil {
		return
	}
	if c.Bodies != nil {
		c.Bodies.Set(float64(bodies))
	}
	if c.Orbits != nil {
		c.Orbits.Set(float64(orbits))
	}
	if c.Moons != nil {
		c.Moons.Set(float64(moons))
	}
	if c.Satellites != nil {
		c.Satellites.Set(float64(satellites))
	}
}

// SetFocusPhase records the focus controller phase as a number.
func (c *FrameCollector) SetFocusPhase(phase int) {
	if c == nil || c.FocusPhase == nil {
		return
	}
	c.FocusPhase.Set(float64(phase))
}

// IncDanglingFocus counts a dropped focus target.
func (c *FrameCollector) IncDanglingFocus() {
	if c == nil || c.DanglingFocus == nil {
		return
	}
	c.DanglingFocus.Inc()
}

// IncFocusSelection counts a selection; source is "pick", "default" or "command".
func (c *FrameCollector) IncFocusSelection(source string) {
	if c == nil || c.FocusSelection == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	c.FocusSelection.WithLabelValues(source).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
