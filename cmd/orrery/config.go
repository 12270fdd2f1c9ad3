package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/sim/state"
	"github.com/signalsfoundry/orrery/kb"
)

const maxFPS = 240

// Config collects the viewer's flags. Environment variables supply the
// defaults for the paths and the metrics address.
type Config struct {
	Registry string
	Watch    bool
	Textures string

	FPS             float64
	TimeCompression float64
	Smoothing       float64
	Focus           string
	Frames          int

	MetricsAddr string
	LogFile     string
	Mute        bool
	Fullscreen  bool
}

// ParseConfig reads args (without the program name). getenv may be nil.
func ParseConfig(args []string, getenv func(string) string, stderr io.Writer) (Config, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	var cfg Config
	fs := flag.NewFlagSet("orrery", flag.ContinueOnError)
	if stderr != nil {
		fs.SetOutput(stderr)
	}
	fs.StringVar(&cfg.Registry, "registry", getenv("ORRERY_REGISTRY"), "JSON or TOML body registry (default: built-in solar system)")
	fs.BoolVar(&cfg.Watch, "watch", envBool(getenv("ORRERY_WATCH")), "reload -registry when the file changes")
	fs.StringVar(&cfg.Textures, "textures", getenv("ORRERY_TEXTURES"), "directory holding body textures; empty draws flat colours")
	fs.Float64Var(&cfg.FPS, "fps", 30, "frames per second")
	fs.Float64Var(&cfg.TimeCompression, "time-compression", core.DefaultTimeCompression, "divides every orbital period")
	fs.Float64Var(&cfg.Smoothing, "smoothing", 0, "camera follow rate per second; 0 blends a fixed fraction per frame")
	fs.StringVar(&cfg.Focus, "focus", state.DefaultFocusTarget, "body focused once it appears; empty disables")
	fs.IntVar(&cfg.Frames, "frames", 0, "stop after this many frames; 0 runs until quit")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("ORRERY_METRICS_ADDR"), "HTTP address for Prometheus /metrics; empty disables")
	fs.StringVar(&cfg.LogFile, "log-file", getenv("ORRERY_LOG_FILE"), "append logs to this file; empty discards them")
	fs.BoolVar(&cfg.Mute, "mute", envBool(getenv("ORRERY_MUTE")), "disable the countdown cue")
	fs.BoolVar(&cfg.Fullscreen, "fullscreen", false, "start with the HUD hidden")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and flag combinations.
func (c Config) Validate() error {
	var errs []error
	if c.FPS <= 0 || c.FPS > maxFPS {
		errs = append(errs, fmt.Errorf("fps must be in (0, %d], got %v", maxFPS, c.FPS))
	}
	if c.TimeCompression <= 0 {
		errs = append(errs, fmt.Errorf("time-compression must be > 0, got %v", c.TimeCompression))
	}
	if c.Smoothing < 0 {
		errs = append(errs, fmt.Errorf("smoothing must be >= 0, got %v", c.Smoothing))
	}
	if c.Frames < 0 {
		errs = append(errs, fmt.Errorf("frames must be >= 0, got %d", c.Frames))
	}
	if c.Watch && c.Registry == "" {
		errs = append(errs, errors.New("watch needs a registry file"))
	}
	if c.Registry != "" {
		if _, err := kb.FormatFromPath(c.Registry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FramesPerCount converts the one-second countdown step into frames.
func (c Config) FramesPerCount() int {
	n := int(c.FPS + 0.5)
	if n < 1 {
		return 1
	}
	return n
}

func envBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
