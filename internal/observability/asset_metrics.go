package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AssetCollector exposes texture-loading Prometheus metrics.
type AssetCollector struct {
	gatherer prometheus.Gatherer

	LoadDuration  prometheus.Histogram
	LoadFailures  prometheus.Counter
	MissingAssets *prometheus.CounterVec
	PendingBuilds prometheus.Gauge
}

// NewAssetCollector registers asset metrics against the provided registerer.
func NewAssetCollector(reg prometheus.Registerer) (*AssetCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	loadHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orrery_asset_load_duration_seconds",
		Help:    "Duration of texture reads including decode and downscale.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	loadHistogram, err := registerHistogram(reg, loadHistogram, "orrery_asset_load_duration_seconds")
	if err != nil {
		return nil, err
	}

	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_asset_load_failures_total",
		Help: "Texture reads that failed to open or decode.",
	})
	failures, err = registerCounter(reg, failures, "orrery_asset_load_failures_total")
	if err != nil {
		return nil, err
	}

	missing := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_missing_assets_total",
		Help: "Bodies, moons or rings omitted because their texture failed, labeled by body.",
	}, []string{"body"})
	missing, err = registerCounterVec(reg, missing, "orrery_missing_assets_total")
	if err != nil {
		return nil, err
	}

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_pending_builds",
		Help: "Number of body builds waiting on texture loads.",
	})
	pending, err = registerGauge(reg, pending, "orrery_pending_builds")
	if err != nil {
		return nil, err
	}

	return &AssetCollector{
		gatherer:      gatherer,
		LoadDuration:  loadHistogram,
		LoadFailures:  failures,
		MissingAssets: missing,
		PendingBuilds: pending,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *AssetCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveAssetLoad records one finished texture read.
func (c *AssetCollector) ObserveAssetLoad(d time.Duration, err error) {
	if c == nil {
		return
	}
	if c.LoadDuration != nil {
		c.LoadDuration.Observe(d.Seconds())
	}
	if err != nil && c.LoadFailures != nil {
		c.LoadFailures.Inc()
	}
}

// IncMissingAsset counts a body left out for a missing texture.
func (c *AssetCollector) IncMissingAsset(body string) {
	if c == nil || c.MissingAssets == nil {
		return
	}
	c.MissingAssets.WithLabelValues(body).Inc()
}

// SetPendingBuilds updates the pending build gauge.
func (c *AssetCollector) SetPendingBuilds(count int) {
	if c == nil || c.PendingBuilds == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	c.PendingBuilds.Set(float64(count))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
