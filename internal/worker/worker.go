package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// State is the lifecycle state of a worker
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// Status is a point-in-time snapshot of a worker's runtime state.
// Runtime only, never persisted.
type Status struct {
	Name                string    `json:"name"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastRun             time.Time `json:"last_run,omitempty"`
}

// ProcessFunc is one unit of work invoked on every tick
type ProcessFunc func(ctx context.Context) error

// Options configures a worker
type Options struct {
	// Interval between successful ticks
	Interval time.Duration
	// RetryPolicy yields the delay before the next tick after a failure;
	// defaults to a constant delay (no backoff growth)
	RetryPolicy backoff.BackOff
	// MaxRetries is the number of consecutive failures after which the
	// worker stops itself instead of retrying forever
	MaxRetries int
	// TickTimeout bounds one process call so a slow provider cannot
	// stall a tick indefinitely
	TickTimeout time.Duration
	// Disabled workers ignore Start()
	Disabled bool
}

// Worker runs a ProcessFunc on a timer with failure counting and
// self-stop. Lifecycle: idle -> running -> {stopped, error}.
type Worker struct {
	name    string
	process ProcessFunc
	opts    Options

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastError           error
	lastRun             time.Time
	stopChan            chan struct{}
}

// New creates a worker in the idle state
func New(name string, process ProcessFunc, opts Options) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = opts.Interval
	}
	if opts.RetryPolicy == nil {
		opts.RetryPolicy = backoff.NewConstantBackOff(15 * time.Second)
	}
	return &Worker{
		name:    name,
		process: process,
		opts:    opts,
		state:   StateIdle,
	}
}

// Name returns the worker's registry name
func (w *Worker) Name() string {
	return w.name
}

// Start begins the poll loop. No-op when already running or disabled.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.opts.Disabled {
		log.Printf("[Worker] %s is disabled, not starting", w.name)
		return
	}
	if w.state == StateRunning || w.state == StateError {
		return
	}

	w.state = StateRunning
	w.consecutiveFailures = 0
	w.lastError = nil
	w.stopChan = make(chan struct{})
	w.opts.RetryPolicy.Reset()

	go w.loop(w.stopChan)
	log.Printf("[Worker] %s started (interval: %s)", w.name, w.opts.Interval)
}

// Stop cancels the pending timer and transitions to stopped. Idempotent,
// and safe to call at any time: an in-progress tick finishes normally,
// only the next tick is prevented.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Worker) stopLocked() {
	if w.stopChan == nil {
		w.state = StateStopped
		return
	}
	select {
	case <-w.stopChan:
		// already closed
	default:
		close(w.stopChan)
	}
	w.state = StateStopped
}

// IsHealthy is true only when running with no consecutive failures
func (w *Worker) IsHealthy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == StateRunning && w.consecutiveFailures == 0
}

// Status returns a snapshot of the worker's runtime state
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	status := Status{
		Name:                w.name,
		State:               w.state,
		ConsecutiveFailures: w.consecutiveFailures,
		LastRun:             w.lastRun,
	}
	if w.lastError != nil {
		status.LastError = w.lastError.Error()
	}
	return status
}

func (w *Worker) loop(stopChan chan struct{}) {
	for {
		delay, stopped := w.tick()
		if stopped {
			return
		}

		select {
		case <-time.After(delay):
		case <-stopChan:
			log.Printf("[Worker] %s stopped", w.name)
			return
		}
	}
}

// tick runs one process call and returns the delay before the next one;
// stopped reports that the worker self-stopped after too many failures
func (w *Worker) tick() (delay time.Duration, stopped bool) {
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.TickTimeout)
	err := w.runProcess(ctx)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateStopped {
		return 0, true
	}

	if err == nil {
		w.consecutiveFailures = 0
		w.lastError = nil
		w.lastRun = time.Now()
		w.state = StateRunning
		w.opts.RetryPolicy.Reset()
		return w.opts.Interval, false
	}

	w.consecutiveFailures++
	w.lastError = err
	w.state = StateError
	log.Printf("[Worker] %s tick failed (%d/%d): %v", w.name, w.consecutiveFailures, w.opts.MaxRetries, err)

	if w.consecutiveFailures >= w.opts.MaxRetries {
		log.Printf("[Worker] %s reached %d consecutive failures, stopping", w.name, w.opts.MaxRetries)
		w.stopLocked()
		return 0, true
	}

	retryDelay := w.opts.RetryPolicy.NextBackOff()
	if retryDelay == backoff.Stop {
		retryDelay = w.opts.Interval
	}
	return retryDelay, false
}

func (w *Worker) runProcess(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process panicked: %v", r)
		}
	}()
	return w.process(ctx)
}
