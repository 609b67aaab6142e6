// Package scheduler runs a task on a fixed interval. Runs never overlap:
// a tick that arrives while the previous run is still in flight is
// skipped. Task errors are logged, never returned, since nobody is
// necessarily watching an unattended run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle"

	"github.com/aretw0/sitecost/pkg/core"
)

// Task is the unit of work run on every tick.
type Task func(ctx context.Context) error

// Scheduler triggers a Task periodically and on demand.
type Scheduler struct {
	interval     time.Duration
	task         Task
	logger       *slog.Logger
	errorHandler func(error)

	running  atomic.Bool
	runs     atomic.Int64
	skips    atomic.Int64
	failures atomic.Int64

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	active  bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for the scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithErrorHandler registers a callback for failed runs, in addition to logging.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		s.errorHandler = fn
	}
}

// New creates a scheduler. A non-positive interval disables the ticker;
// the task then only runs through Handle.Trigger.
func New(interval time.Duration, task Task, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: interval,
		task:     task,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle controls a started scheduler.
type Handle struct {
	cancel  context.CancelFunc
	trigger chan struct{}
	done    chan struct{}
	runs    sync.WaitGroup
}

// Trigger requests an immediate run. It never blocks; a request made
// while another one is pending is coalesced.
func (h *Handle) Trigger() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for it and any in-flight run to finish.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
	h.runs.Wait()
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start launches the loop. It stops when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel:  cancel,
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.setActive(true)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(h.done)
		defer s.setActive(false)

		var tick <-chan time.Time
		if s.interval > 0 {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		s.logger.Debug("scheduler started", "interval", s.interval)

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("scheduler stopped")
				return nil
			case <-tick:
				s.dispatch(ctx, h, "tick")
			case <-h.trigger:
				s.dispatch(ctx, h, "trigger")
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.report(fmt.Errorf("scheduler panic: %w", err))
	}))

	return h
}

// dispatch starts a run unless one is already in flight.
func (s *Scheduler) dispatch(ctx context.Context, h *Handle, reason string) {
	if !s.running.CompareAndSwap(false, true) {
		s.skips.Add(1)
		s.logger.Debug("run skipped, previous still in flight", "reason", reason)
		return
	}

	h.runs.Add(1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer h.runs.Done()
		defer s.running.Store(false)
		s.execute(ctx, reason)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.report(fmt.Errorf("scheduled run panic: %w", err))
	}))
}

func (s *Scheduler) execute(ctx context.Context, reason string) {
	err := s.task(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	switch {
	case err == nil:
		s.runs.Add(1)
		s.logger.Debug("scheduled run completed", "reason", reason)
	case errors.Is(err, core.ErrBusy):
		s.skips.Add(1)
		s.logger.Debug("run skipped, sync in progress", "reason", reason)
	default:
		s.runs.Add(1)
		s.report(err)
	}
}

func (s *Scheduler) report(err error) {
	s.failures.Add(1)
	s.logger.Warn("scheduled run failed", "error", err)
	if s.errorHandler != nil {
		s.errorHandler(err)
	}
}

func (s *Scheduler) setActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Active    bool          `json:"active"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	Skips     int64         `json:"skips"`
	Failures  int64         `json:"failures"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Active:   s.active,
		Interval: s.interval,
		Runs:     s.runs.Load(),
		Skips:    s.skips.Load(),
		Failures: s.failures.Load(),
	}
	if !s.lastRun.IsZero() {
		t := s.lastRun
		st.LastRun = &t
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// State implements introspection.Introspectable.
func (s *Scheduler) State() any {
	return s.Stats()
}

// ComponentType implements introspection.Component.
func (s *Scheduler) ComponentType() string {
	return "scheduler"
}

var _ introspection.Introspectable = (*Scheduler)(nil)
var _ introspection.Component = (*Scheduler)(nil)
