package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes (temp file + rename) into one change.
const DefaultDebounce = 50 * time.Millisecond

// Change reports that a watched workspace file was written or removed.
type Change struct {
	Name      string
	Removed   bool
	Timestamp time.Time
}

func (c Change) String() string {
	if c.Removed {
		return "removed " + c.Name
	}
	return "changed " + c.Name
}

// Watch reports changes to workspace files whose name matches pattern
// (a doublestar glob, "*" for all). The channel is closed when ctx ends.
func (w *Workspace) Watch(ctx context.Context, pattern string) (<-chan Change, error) {
	if pattern == "" {
		pattern = LedgerFile
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.Dir()); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", w.Dir(), err)
	}

	out := make(chan Change)
	d := newDebouncer(DefaultDebounce)
	w.setWatcherActive(true)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		defer w.setWatcherActive(false)
		defer watcher.Close()
		defer d.stopAndWait(5 * time.Second)
		defer w.recoverWatcher(ctx)

		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				change, keep := w.filter(event, pattern)
				if !keep {
					continue
				}
				w.logger.Debug("workspace change", "name", change.Name, "removed", change.Removed)
				d.add(change, func(c Change) {
					// out may already be closed if delivery outlived shutdown.
					defer func() { _ = recover() }()
					select {
					case out <- c:
					case <-ctx.Done():
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				w.logger.Error("fsnotify error", "error", err)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		w.logger.Error("watcher failed", "error", err)
	}))

	return out, nil
}

func (w *Workspace) filter(event fsnotify.Event, pattern string) (Change, bool) {
	name := filepath.Base(event.Name)
	if len(name) >= len(TempFilePrefix) && name[:len(TempFilePrefix)] == TempFilePrefix {
		return Change{}, false
	}
	if match, _ := doublestar.Match(pattern, name); !match {
		return Change{}, false
	}
	var removed bool
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		removed = true
	default:
		return Change{}, false
	}
	return Change{Name: name, Removed: removed, Timestamp: w.now()}, true
}

func (w *Workspace) recoverWatcher(ctx context.Context) {
	if r := recover(); r != nil {
		if w.logger.Enabled(ctx, slog.LevelDebug) {
			w.logger.Error("watcher panic", "error", r, "stack", string(debug.Stack()))
		} else {
			w.logger.Error("watcher panic", "error", r)
		}
	}
}

func (w *Workspace) setWatcherActive(active bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watcherActive = active
}

// debouncer delivers the last change per file once it has been quiet
// for the configured delay.
type debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) add(c Change, deliver func(Change)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[c.Name]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	d.timers[c.Name] = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.timers, c.Name)
		d.mu.Unlock()
		deliver(c)
	})
}

// stopAndWait cancels pending timers and waits for in-flight deliveries.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for name, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, name)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
