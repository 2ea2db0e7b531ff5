package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/quillforge/quill/internal/store"
)

// ErrCycleInProgress is returned by SyncNow when another cycle already holds
// the single-flight guard.
var ErrCycleInProgress = errors.New("sync: cycle already in progress")

// Config holds tuning knobs for the engine.
type Config struct {
	// Interval is the fixed timer driving background cycles.
	Interval time.Duration

	// Debounce is how long a trigger waits before starting a cycle, so a
	// burst of collaborator writes collapses into one pending cycle.
	Debounce time.Duration

	// ProbeTimeout bounds the reachability probe issued at the top of each
	// cycle.
	ProbeTimeout time.Duration

	// PullWindow is the size of the most-recently-modified window fetched
	// from the remote store during the pull phases.
	PullWindow int

	// QueueBatch is the maximum number of retry-queue entries replayed per
	// cycle.
	QueueBatch int

	// RetryCeiling is how many failed replays a queue entry survives before
	// it is dropped with a warning.
	RetryCeiling int

	// FailureLogCeiling controls probe log verbosity: past this many
	// consecutive failures, only every FailureLogCeiling-th failure is
	// logged. The engine keeps probing regardless.
	FailureLogCeiling int

	// Logger for engine activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:          30 * time.Second,
		Debounce:          500 * time.Millisecond,
		ProbeTimeout:      3 * time.Second,
		PullWindow:        100,
		QueueBatch:        50,
		RetryCeiling:      5,
		FailureLogCeiling: 5,
		Logger:            log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Status is the operational snapshot collaborators can query. Individual
// record conflicts and retries are deliberately invisible here.
type Status struct {
	// Reachable reports the outcome of the most recent probe.
	Reachable bool

	// LastSyncTime is when the last full cycle completed. Zero if none has.
	LastSyncTime time.Time

	// CycleInProgress reports whether a cycle currently holds the
	// single-flight guard.
	CycleInProgress bool

	// ConsecutiveFailures counts probe failures since the remote store was
	// last reachable.
	ConsecutiveFailures int
}

// Engine orchestrates sync cycles between the local and remote stores.
//
// An Engine instance owns all of its state, with no process-wide globals,
// and is constructed with injected store handles. Collaborators
// hold a reference and use TriggerSync, Subscribe, and Status.
type Engine struct {
	local    *store.Local
	remote   store.Remote
	deviceID string
	config   *Config
	logger   *log.Logger

	monitor *monitor

	// inCycle is the process-wide single-flight guard: at most one cycle
	// runs at a time, and a cycle requested while one is active is a no-op.
	inCycle atomic.Bool

	mu        stdsync.Mutex // guards reachable, lastSync, failures
	reachable bool
	lastSync  time.Time
	failures  int

	trigger  chan struct{}
	done     chan struct{}
	stopOnce stdsync.Once
	started  atomic.Bool
	wg       stdsync.WaitGroup

	subMu   stdsync.Mutex
	subs    map[int]RecordUpdateFunc
	nextSub int
}

// New creates an Engine over the given stores.
//
// The local store must be opened and have its schema initialized; deviceID
// is the persisted identity from device.EnsureID. If config is nil,
// DefaultConfig is used; non-positive tuning values and a nil Logger fall
// back to their DefaultConfig counterparts, so a partially populated config
// can never stall or panic the run loop.
func New(local *store.Local, remote store.Remote, deviceID string, config *Config) (*Engine, error) {
	if local == nil {
		return nil, fmt.Errorf("local store cannot be nil")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote store cannot be nil")
	}
	if deviceID == "" {
		return nil, fmt.Errorf("device id cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	// Clamp a copy so the caller's struct is left alone.
	cfg := *config
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = defaults.Debounce
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.PullWindow <= 0 {
		cfg.PullWindow = defaults.PullWindow
	}
	if cfg.QueueBatch <= 0 {
		cfg.QueueBatch = defaults.QueueBatch
	}
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = defaults.RetryCeiling
	}
	if cfg.FailureLogCeiling <= 0 {
		cfg.FailureLogCeiling = defaults.FailureLogCeiling
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Engine{
		local:    local,
		remote:   remote,
		deviceID: deviceID,
		config:   &cfg,
		logger:   cfg.Logger,
		monitor: &monitor{
			timeout:    cfg.ProbeTimeout,
			logCeiling: cfg.FailureLogCeiling,
		},
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
		subs:    make(map[int]RecordUpdateFunc),
	}, nil
}

// Start launches the background loop: a fixed-interval timer plus debounced
// trigger handling. It returns immediately; call Stop to shut down.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("engine already started")
	}

	e.logger.Printf("Starting engine (device %s, interval %v)", e.deviceID, e.config.Interval)

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

// Stop prevents scheduling of any future cycles and waits for the loop to
// exit. An in-flight cycle always runs to completion: partial application is
// already tolerated by the per-record isolation design, so there is no
// mid-cycle abort.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
}

// TriggerSync requests a cycle. Fire-and-forget: it never blocks, and a
// burst of triggers collapses into one pending cycle.
func (e *Engine) TriggerSync() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// SyncNow runs one full cycle synchronously. Returns ErrCycleInProgress if
// the single-flight guard rejects it.
func (e *Engine) SyncNow(ctx context.Context) error {
	if !e.inCycle.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	defer e.inCycle.Store(false)

	e.cycle(ctx)
	return nil
}

// Status returns the engine's operational snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Status{
		Reachable:           e.reachable,
		LastSyncTime:        e.lastSync,
		CycleInProgress:     e.inCycle.Load(),
		ConsecutiveFailures: e.failures,
	}
}

// run is the scheduling loop: timer ticks and debounced triggers both feed
// runCycle, which enforces single-flight.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return

		case <-ticker.C:
			e.runCycle(ctx)

		case <-e.trigger:
			// Let the rest of a write burst land before starting.
			timer := time.NewTimer(e.config.Debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-e.done:
				timer.Stop()
				return
			case <-timer.C:
			}
			e.drainTriggers()
			e.runCycle(ctx)
		}
	}
}

// drainTriggers empties the trigger channel so triggers that arrived during
// the debounce window collapse into the cycle about to run.
func (e *Engine) drainTriggers() {
	for {
		select {
		case <-e.trigger:
		default:
			return
		}
	}
}

// runCycle runs one cycle if no other cycle is active; otherwise it is a
// no-op and the next tick or trigger picks the work up.
func (e *Engine) runCycle(ctx context.Context) {
	if !e.inCycle.CompareAndSwap(false, true) {
		return
	}
	defer e.inCycle.Store(false)

	e.cycle(ctx)
}

// cycle executes the phase sequence. Callers must hold the single-flight
// guard. Each phase absorbs its own failures: nothing here may panic out or
// abort later phases beyond what the phase itself decides.
func (e *Engine) cycle(ctx context.Context) {
	start := time.Now()

	// Probing: unreachable means skip everything until the next tick.
	ok := e.monitor.probe(ctx, e.remote, e.logger)
	e.setReachability(ok)
	if !ok {
		return
	}

	e.drainQueue(ctx)
	e.pushRecords(ctx)
	e.pushSnapshots(ctx)
	e.pullRecords(ctx)
	e.pullSnapshots(ctx)

	e.mu.Lock()
	e.lastSync = time.Now()
	e.mu.Unlock()

	e.logger.Printf("Cycle complete in %v", time.Since(start).Round(time.Millisecond))
}

func (e *Engine) setReachability(ok bool) {
	e.mu.Lock()
	e.reachable = ok
	e.failures = e.monitor.consecutiveFailures()
	e.mu.Unlock()
}
