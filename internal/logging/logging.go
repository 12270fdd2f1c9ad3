// Package logging is the viewer's structured logger: a thin slog facade with
// frame-aware context helpers and a throttle for messages emitted every frame.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/time/rate"
)

// Field is a structured logging attribute.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field                 { return Field{Key: key, Value: value} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Float(key string, value float64) Field          { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field              { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field                { return Field{Key: key, Value: value} }

// Body tags a record with a body id.
func Body(id string) Field { return Field{Key: "body", Value: id} }

// Vec formats a scene-space vector with two decimals.
func Vec(key string, v mgl64.Vec3) Field {
	return Field{Key: key, Value: fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X(), v.Y(), v.Z())}
}

// Err records err under "error". A nil error is logged as null.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger is what every package in the viewer logs through.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config selects the slog handler.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // json or text
	AddSource bool
	Output    io.Writer // stderr when nil
}

// New builds a slog-backed Logger.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	}
	return slogLogger{l: slog.New(h)}
}

// NewFromEnv reads ORRERY_LOG_LEVEL and ORRERY_LOG_FORMAT, falling back to
// the generic LOG_LEVEL and LOG_FORMAT.
func NewFromEnv(out io.Writer) Logger {
	return New(Config{
		Level:     envOr("ORRERY_LOG_LEVEL", "LOG_LEVEL"),
		Format:    envOr("ORRERY_LOG_FORMAT", "LOG_FORMAT"),
		AddSource: true,
		Output:    out,
	})
}

func envOr(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Noop drops everything.
func Noop() Logger { return noopLogger{} }

type slogLogger struct{ l *slog.Logger }

func (s slogLogger) log(ctx context.Context, lvl slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.l.Enabled(ctx, lvl) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	s.l.LogAttrs(ctx, lvl, msg, attrs...)
}

func (s slogLogger) Debug(ctx context.Context, msg string, f ...Field) { s.log(ctx, slog.LevelDebug, msg, f) }
func (s slogLogger) Info(ctx context.Context, msg string, f ...Field)  { s.log(ctx, slog.LevelInfo, msg, f) }
func (s slogLogger) Warn(ctx context.Context, msg string, f ...Field)  { s.log(ctx, slog.LevelWarn, msg, f) }
func (s slogLogger) Error(ctx context.Context, msg string, f ...Field) { s.log(ctx, slog.LevelError, msg, f) }

func (s slogLogger) With(fields ...Field) Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = slog.Any(f.Key, f.Value)
	}
	return slogLogger{l: s.l.With(args...)}
}

type noopLogger struct{}

func (noopLogger) With(...Field) Logger                    { return noopLogger{} }
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}

// Throttle wraps base so that each distinct message is written at most once
// per interval. Records with the same message but different fields share a
// budget. Loggers derived through With share the budget of their parent.
func Throttle(base Logger, interval time.Duration) Logger {
	if base == nil {
		base = Noop()
	}
	return &throttled{base: base, gates: &gateSet{interval: interval, byMsg: make(map[string]*rate.Sometimes)}}
}

type gateSet struct {
	interval time.Duration
	mu       sync.Mutex
	byMsg    map[string]*rate.Sometimes
}

func (g *gateSet) do(msg string, fn func()) {
	g.mu.Lock()
	s, ok := g.byMsg[msg]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: g.interval}
		g.byMsg[msg] = s
	}
	g.mu.Unlock()
	s.Do(fn)
}

type throttled struct {
	base  Logger
	gates *gateSet
}

func (t *throttled) With(fields ...Field) Logger {
	return &throttled{base: t.base.With(fields...), gates: t.gates}
}

func (t *throttled) Debug(ctx context.Context, msg string, f ...Field) {
	t.gates.do(msg, func() { t.base.Debug(ctx, msg, f...) })
}

func (t *throttled) Info(ctx context.Context, msg string, f ...Field) {
	t.gates.do(msg, func() { t.base.Info(ctx, msg, f...) })
}

func (t *throttled) Warn(ctx context.Context, msg string, f ...Field) {
	t.gates.do(msg, func() { t.base.Warn(ctx, msg, f...) })
}

// Error is never throttled.
func (t *throttled) Error(ctx context.Context, msg string, f ...Field) {
	t.base.Error(ctx, msg, f...)
}

type frameKey struct{}

// ContextWithFrame stores the current frame index in ctx.
func ContextWithFrame(ctx context.Context, frame uint64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, frameKey{}, frame)
}

// FrameFromContext extracts the frame index stored by ContextWithFrame.
func FrameFromContext(ctx context.Context) (uint64, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(frameKey{}).(uint64)
	return v, ok
}

// WithFrame returns base annotated with the frame in ctx, or base itself
// when ctx carries none.
func WithFrame(ctx context.Context, base Logger) Logger {
	if base == nil {
		base = Noop()
	}
	if frame, ok := FrameFromContext(ctx); ok {
		return base.With(Any("frame", frame))
	}
	return base
}
