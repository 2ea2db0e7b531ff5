// Package daemon runs the sync engine as a long-lived background process.
//
// The daemon:
//  1. Starts the engine's timer-driven cycle loop
//  2. Watches the local database file so out-of-process collaborator writes
//     trigger a cycle without waiting for the timer
//  3. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/quillforge/quill/internal/store"
	"github.com/quillforge/quill/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger: log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon couples the engine's lifecycle to a database watcher and a
// shutdown signal.
type Daemon struct {
	engine  *sync.Engine
	local   *store.Local
	config  *Config
	watcher *DBWatcher
}

// New creates a Daemon around an engine and the local store it syncs.
func New(engine *sync.Engine, local *store.Local, config *Config) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if local == nil {
		return nil, fmt.Errorf("local store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := NewDBWatcher(local.Path())
	if err != nil {
		return nil, err
	}

	return &Daemon{
		engine:  engine,
		local:   local,
		config:  config,
		watcher: watcher,
	}, nil
}

// Start runs the daemon until ctx is cancelled.
//
// Database-write events feed the engine's debounced trigger. The engine's
// own bookkeeping writes come back as events too, but a cycle that changes
// nothing writes nothing, so the self-observation settles after at most one
// extra no-op cycle.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if err := d.watcher.Start(); err != nil {
		d.engine.Stop()
		return fmt.Errorf("failed to start database watcher: %w", err)
	}

	d.config.Logger.Printf("Watching %s", d.local.Path())

	// Run one cycle up front so a daemon started after offline edits
	// converges immediately instead of on the first tick.
	d.engine.TriggerSync()

	for {
		select {
		case <-ctx.Done():
			d.config.Logger.Println("Shutdown signal received")
			return d.Stop()

		case _, ok := <-d.watcher.Events():
			if !ok {
				return nil
			}
			d.engine.TriggerSync()

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return nil
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// Stop shuts the watcher and engine down. The engine finishes any in-flight
// cycle before returning.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	start := time.Now()

	if err := d.watcher.Stop(); err != nil {
		d.config.Logger.Printf("Error stopping watcher: %v", err)
	}

	d.engine.Stop()

	d.config.Logger.Printf("Daemon stopped in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
