package assets

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/orrery/internal/logging"
)

// LoadRecorder receives one observation per finished texture load.
type LoadRecorder interface {
	ObserveAssetLoad(d time.Duration, err error)
}

// Loader reads textures from a filesystem on background goroutines.
// Results are cached per path, so every body sharing a texture shares the
// same future.
type Loader struct {
	fsys     fs.FS
	maxWidth int
	log      logging.Logger
	tracer   trace.Tracer
	recorder LoadRecorder

	mu    sync.Mutex
	cache map[string]*Future[*Texture]
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(log logging.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithRecorder reports load durations and failures.
func WithRecorder(rec LoadRecorder) LoaderOption {
	return func(l *Loader) { l.recorder = rec }
}

// WithMaxWidth overrides MaxTextureWidth.
func WithMaxWidth(px int) LoaderOption {
	return func(l *Loader) { l.maxWidth = px }
}

// NewLoader creates a loader rooted at fsys. A nil fsys fails every load.
func NewLoader(fsys fs.FS, opts ...LoaderOption) *Loader {
	l := &Loader{
		fsys:   fsys,
		log:    logging.Noop(),
		tracer: otel.Tracer("github.com/signalsfoundry/orrery/internal/assets"),
		cache:  make(map[string]*Future[*Texture]),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load starts loading name, or returns the in-flight or finished future for
// it. Failed loads stay cached as failures for the lifetime of the loader.
func (l *Loader) Load(ctx context.Context, name string) *Future[*Texture] {
	name = path.Clean(name)

	l.mu.Lock()
	if f, ok := l.cache[name]; ok {
		l.mu.Unlock()
		return f
	}
	f, resolve := NewFuture[*Texture]()
	l.cache[name] = f
	l.mu.Unlock()

	go func() {
		tex, err := l.read(ctx, name)
		resolve(tex, err)
	}()
	return f
}

// Forget drops name from the cache so the next Load reads it again.
func (l *Loader) Forget(name string) {
	l.mu.Lock()
	delete(l.cache, path.Clean(name))
	l.mu.Unlock()
}

func (l *Loader) read(ctx context.Context, name string) (tex *Texture, err error) {
	ctx, span := l.tracer.Start(ctx, "assets.Load", trace.WithAttributes(attribute.String("asset.path", name)))
	start := time.Now()
	defer func() {
		if l.recorder != nil {
			l.recorder.ObserveAssetLoad(time.Since(start), err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if l.fsys == nil {
		return nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
	}
	file, err := l.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tex, format, err := Decode(file, l.maxWidth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	w, h := tex.Size()
	span.SetAttributes(attribute.String("asset.format", format), attribute.Int("asset.width", w))
	l.log.Debug(ctx, "texture loaded",
		logging.String("path", name),
		logging.String("format", format),
		logging.Int("width", w),
		logging.Int("height", h),
	)
	return tex, nil
}
