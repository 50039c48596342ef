package intake

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/store"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes an inbox directory and enqueues one import task per
// dropped file. Files are enqueued only after their events have settled
// for settleDelay, since exports are often written in several chunks.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	store    *store.Store
	inboxDir string
	settle   time.Duration
	pending  map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a watcher over inboxDir. Start must be called to
// begin watching.
func NewWatcher(s *store.Store, inboxDir string, settle time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{
		watcher:  fw,
		store:    s,
		inboxDir: inboxDir,
		settle:   settle,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start creates the inbox directory if needed and begins watching.
// Non-blocking; the event loop runs in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.inboxDir, 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(w.inboxDir); err != nil {
		return err
	}
	logging.Intake("Watching inbox: %s", w.inboxDir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryIntake).Error("Error closing inbox watcher: %v", err)
	}
	logging.Intake("Inbox watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryIntake).Error("Inbox watcher error: %v", err)

		case <-ticker.C:
			w.flushSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !importable(event.Name) {
		return
	}

	logging.IntakeDebug("Inbox event %s for %s", event.Op, event.Name)
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// flushSettled enqueues files whose last event is older than the settle
// delay. Enqueue failures leave the file pending for the next tick.
func (w *Watcher) flushSettled() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		if _, err := os.Stat(path); err != nil {
			logging.IntakeDebug("Inbox file vanished before enqueue: %s", path)
			continue
		}
		task, err := w.store.Enqueue(TaskImportFile, ImportPayload{Path: path}, 0)
		if err != nil {
			logging.Get(logging.CategoryIntake).Error("Failed to enqueue import of %s: %v", path, err)
			w.mu.Lock()
			w.pending[path] = now
			w.mu.Unlock()
			continue
		}
		logging.Intake("Enqueued import task %s for %s", task.ID, filepath.Base(path))
	}
}

func importable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
