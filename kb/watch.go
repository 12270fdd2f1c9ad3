package kb

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/signalsfoundry/orrery/internal/logging"
)

// DefaultReloadDelay coalesces the burst of events an editor save produces.
const DefaultReloadDelay = 200 * time.Millisecond

// Watcher reloads a registry file into a KnowledgeBase whenever it changes.
// A file that fails to load leaves the KB as it was.
type Watcher struct {
	Path  string
	Store *KnowledgeBase
	Delay time.Duration

	log logging.Logger
}

// NewWatcher constructs a watcher for path.
func NewWatcher(path string, store *KnowledgeBase, log logging.Logger) *Watcher {
	if log == nil {
		log = logging.Noop()
	}
	return &Watcher{
		Path:  path,
		Store: store,
		Delay: DefaultReloadDelay,
		log:   log.With(logging.String("registry", path)),
	}
}

// Reload loads the file once and syncs it into the store.
func (w *Watcher) Reload(ctx context.Context) (SyncResult, error) {
	defs, err := LoadFile(w.Path)
	if err != nil {
		return SyncResult{}, err
	}
	res, err := w.Store.Sync(defs)
	if err != nil {
		return SyncResult{}, err
	}
	if res.Changed() {
		w.log.Info(ctx, "registry reloaded",
			logging.Any("added", res.Added),
			logging.Any("updated", res.Updated),
			logging.Any("removed", res.Removed),
		)
	}
	return res, nil
}

// Run watches the file's directory until ctx is cancelled. Directories are
// watched rather than the file so that atomic-rename saves are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	target, err := filepath.Abs(w.Path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", w.Path, err)
	}
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %q: %w", filepath.Dir(target), err)
	}

	delay := w.Delay
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	timer := time.NewTimer(delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || name != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(delay)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, "registry watcher error", logging.Err(err))
		case <-timer.C:
			if _, err := w.Reload(ctx); err != nil {
				w.log.Warn(ctx, "registry reload failed; keeping previous bodies", logging.Err(err))
			}
		}
	}
}
