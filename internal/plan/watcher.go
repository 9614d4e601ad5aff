package plan

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"swarm/internal/logging"
)

// Watcher observes the plan file and invokes a callback after each
// human edit. Editor save patterns (write bursts, rename-and-replace)
// are debounced so one save triggers one sync.
type Watcher struct {
	engine   *Engine
	onChange func()

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	debounce time.Duration
	lastSeen time.Time
	running  bool
	done     chan struct{}
}

// NewWatcher builds a watcher over the engine's plan file. onChange
// runs on the watcher goroutine; callers serialize with the kernel via
// their own channel or lock.
func NewWatcher(engine *Engine, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		engine:   engine,
		onChange: onChange,
		watcher:  fsw,
		debounce: 500 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The enclosing directory is watched, not the
// file: editors that rename-and-replace would otherwise detach the
// watch on every save.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.engine.Path())
	if err := w.watcher.Add(dir); err != nil {
		logging.PlanWarn("plan watch failed (dir may not exist yet): %v", err)
	} else {
		logging.Plan("watching plan directory: %s", dir)
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	target := w.engine.Path()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.mu.Lock()
			now := time.Now()
			debounced := now.Sub(w.lastSeen) < w.debounce
			if !debounced {
				w.lastSeen = now
			}
			w.mu.Unlock()
			if debounced {
				continue
			}
			logging.PlanDebug("plan change detected: %s", event.Op)
			w.onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.PlanWarn("plan watcher error: %v", err)
		}
	}
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.watcher.Close()
	<-w.done
}
