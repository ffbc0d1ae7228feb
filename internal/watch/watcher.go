// Package watch re-triggers a comparison when either trace file changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the files must stay quiet before the handler
// runs. Simulators write traces in many small chunks.
const DefaultDebounce = 500 * time.Millisecond

// Handler receives the watched paths that changed since the last call.
// Calls never overlap.
type Handler func(changed []string)

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
}

// Watcher watches a fixed set of files. It subscribes to their parent
// directories so files replaced by rename keep being tracked.
type Watcher struct {
	targets  map[string]bool // cleaned absolute paths
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger

	changes  chan string
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
}

// New creates a Watcher for paths.
func New(paths []string, handler Handler, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	targets := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[filepath.Clean(abs)] = true
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		targets:  targets,
		watcher:  fw,
		handler:  handler,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		changes:  make(chan string, 64),
		done:     make(chan struct{}),
	}, nil
}

// Start subscribes to the parent directories and begins delivering changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil // Already watching
	}
	w.watching = true
	w.mu.Unlock()

	dirs := make(map[string]bool)
	for p := range w.targets {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop ends watching and waits for the background goroutines.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(event.Name)
			if !w.targets[name] {
				continue
			}
			select {
			case w.changes <- name:
			default:
				// Buffer full; a flush is already pending.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) > 0 && w.handler != nil {
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			w.logger.Debug("Trace files changed", zap.Strings("paths", changed))
			w.handler(changed)
		}
		clear(pending)
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case p := <-w.changes:
			pending[p] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}
