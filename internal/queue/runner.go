// Package queue drains the persisted work queue. A single runner owns a
// one-shot timer that it re-arms after every drain; there is no worker
// pool, just one mutex keeping drains from overlapping.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/store"
	"github.com/DoubleArturo/hsus-order-status/internal/types"
)

// HandlerFunc processes one leased task. Returning an error schedules a
// retry until the attempt budget runs out. Delivery is at-least-once, so
// handlers must tolerate reprocessing.
type HandlerFunc func(ctx context.Context, task types.Task) error

// Options tunes the runner. Zero fields fall back to defaults.
type Options struct {
	TickInterval  time.Duration // Delay between drains
	LeaseDuration time.Duration // How long a leased task stays invisible
	MaxAttempts   int           // Attempts before a task is failed out
	RetryBackoff  time.Duration // Base backoff, scaled by attempt count
	BatchSize     int           // Tasks leased per drain round
}

func (o *Options) applyDefaults() {
	if o.TickInterval <= 0 {
		o.TickInterval = 30 * time.Second
	}
	if o.LeaseDuration <= 0 {
		o.LeaseDuration = 5 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 25
	}
}

// Runner drains due tasks through registered handlers.
type Runner struct {
	store    *store.Store
	opts     Options
	handlers map[string]HandlerFunc

	drainMu sync.Mutex // At most one drain at a time

	mu      sync.Mutex // Guards lifecycle state below
	timer   *time.Timer
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewRunner creates a runner. Register handlers before calling Start.
func NewRunner(s *store.Store, opts Options) *Runner {
	opts.applyDefaults()
	return &Runner{
		store:    s,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a task kind. Last registration wins.
func (r *Runner) Register(kind string, h HandlerFunc) {
	r.handlers[kind] = h
}

// Start arms the timer and begins the drain loop. Non-blocking.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.timer = time.NewTimer(r.opts.TickInterval)
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	logging.Queue("Runner started: tick %s, lease %s, max attempts %d",
		r.opts.TickInterval, r.opts.LeaseDuration, r.opts.MaxAttempts)
	go r.loop(ctx)
}

// Stop halts the loop and waits for any in-flight drain to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	<-doneCh
	logging.Queue("Runner stopped")
}

// Kick fires the timer early, so freshly enqueued work does not wait a
// full tick. Safe to call whether or not the runner is started.
func (r *Runner) Kick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.timer.Reset(0)
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.doneCh)
	defer r.timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-r.timer.C:
			if _, err := r.Drain(ctx); err != nil {
				logging.Get(logging.CategoryQueue).Error("Drain failed: %v", err)
			}
			// One-shot timer, re-armed only after the drain completes,
			// so a slow drain cannot stack up ticks behind itself.
			r.mu.Lock()
			if r.running {
				r.timer.Reset(r.opts.TickInterval)
			}
			r.mu.Unlock()
		}
	}
}

// Drain requeues stalled leases, then leases and processes due tasks in
// batches until the queue has no more due work. Returns the number of
// tasks processed. Callable directly for run-once CLI use.
func (r *Runner) Drain(ctx context.Context) (int, error) {
	r.drainMu.Lock()
	defer r.drainMu.Unlock()

	now := time.Now().UTC()
	if n, err := r.store.RequeueStalled(now); err != nil {
		return 0, fmt.Errorf("failed to requeue stalled tasks: %w", err)
	} else if n > 0 {
		logging.Queue("Requeued %d stalled tasks", n)
	}

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		tasks, err := r.store.LeaseDue(time.Now().UTC(), r.opts.BatchSize, r.opts.LeaseDuration)
		if err != nil {
			return processed, fmt.Errorf("failed to lease tasks: %w", err)
		}
		if len(tasks) == 0 {
			return processed, nil
		}

		for _, task := range tasks {
			r.process(ctx, task)
			processed++
		}
		if len(tasks) < r.opts.BatchSize {
			return processed, nil
		}
	}
}

func (r *Runner) process(ctx context.Context, task types.Task) {
	handler, ok := r.handlers[task.Kind]
	if !ok {
		logging.Get(logging.CategoryQueue).Error("Task %s has no handler for kind %q", task.ID, task.Kind)
		if err := r.store.FailTask(task.ID, fmt.Sprintf("no handler registered for kind %q", task.Kind)); err != nil {
			logging.Get(logging.CategoryQueue).Error("Failed to fail task %s: %v", task.ID, err)
		}
		return
	}

	timer := logging.StartTimer(logging.CategoryQueue, "process "+task.Kind)
	err := r.runHandler(ctx, handler, task)
	timer.Stop()

	if err == nil {
		if cerr := r.store.CompleteTask(task.ID); cerr != nil {
			logging.Get(logging.CategoryQueue).Error("Failed to complete task %s: %v", task.ID, cerr)
		}
		return
	}

	if task.Attempts >= r.opts.MaxAttempts {
		logging.Get(logging.CategoryQueue).Error("Task %s failed out after %d attempts: %v", task.ID, task.Attempts, err)
		if ferr := r.store.FailTask(task.ID, err.Error()); ferr != nil {
			logging.Get(logging.CategoryQueue).Error("Failed to fail task %s: %v", task.ID, ferr)
		}
		return
	}

	// Linear backoff: attempt n waits n times the base backoff.
	notBefore := time.Now().UTC().Add(time.Duration(task.Attempts) * r.opts.RetryBackoff)
	logging.Queue("Task %s attempt %d/%d failed, retrying after %s: %v",
		task.ID, task.Attempts, r.opts.MaxAttempts, notBefore.Format(time.RFC3339), err)
	if rerr := r.store.RetryTask(task.ID, err.Error(), notBefore); rerr != nil {
		logging.Get(logging.CategoryQueue).Error("Failed to retry task %s: %v", task.ID, rerr)
	}
}

// runHandler isolates handler panics so one bad task cannot take down
// the runner. A panic counts as a handler error.
func (r *Runner) runHandler(ctx context.Context, h HandlerFunc, task types.Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, task)
}
