package daemon

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DBWatcher watches the directory holding the local SQLite database and
// emits an event whenever the database file, its WAL, or its rollback
// journal is written. Collaborator processes sharing the database file wake
// the engine this way instead of waiting for the next timer tick.
//
// It uses fsnotify for cross-platform file system event monitoring.
type DBWatcher struct {
	watcher *fsnotify.Watcher
	events  chan struct{}
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	dbPath  string
}

// NewDBWatcher creates a watcher for the given database file path.
// The watcher must be started with Start() before it will emit events.
func NewDBWatcher(dbPath string) (*DBWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	return &DBWatcher{
		watcher: watcher,
		events:  make(chan struct{}, 16),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
		dbPath:  abs,
	}, nil
}

// Start begins watching the database directory for writes.
func (w *DBWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	// Watch the directory, not the file: SQLite creates and removes the
	// -wal/-journal siblings, and some platforms drop watches on replaced
	// files.
	if err := w.watcher.Add(filepath.Dir(w.dbPath)); err != nil {
		return fmt.Errorf("failed to watch database directory: %w", err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching and cleans up. It blocks until the event processing
// goroutine has exited.
func (w *DBWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()

	close(w.events)
	close(w.errors)

	return nil
}

// Events returns the channel that signals database writes.
// This channel is closed when the watcher is stopped.
func (w *DBWatcher) Events() <-chan struct{} {
	return w.events
}

// Errors returns the channel that emits watcher errors.
// This channel is closed when the watcher is stopped.
func (w *DBWatcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *DBWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// processEvents converts raw fsnotify events into database-write signals.
func (w *DBWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.isDatabaseWrite(event) {
				continue
			}

			select {
			case w.events <- struct{}{}:
			case <-w.done:
				return
			default:
				// A signal is already pending; coalescing is fine.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// isDatabaseWrite reports whether the event touches the database file or one
// of its SQLite siblings (-wal, -journal, -shm).
func (w *DBWatcher) isDatabaseWrite(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}

	return abs == w.dbPath || strings.HasPrefix(abs, w.dbPath+"-")
}
