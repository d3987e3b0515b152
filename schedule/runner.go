// Package schedule is the optional periodic-task runtime for hookrelay.
// The engine itself owns no timer loop; a Runner drives it from the
// outside: a cron entry fires the stuck-item sweep on a fixed period, and
// a coalescing trigger channel turns enqueue signals into dispatch cycles.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/hookrelay/hookrelay/dispatcher"
)

// Engine is the subset of engine.Engine the runner drives.
type Engine interface {
	RunCycle(ctx context.Context) (dispatcher.CycleResult, error)
	SweepStuck(ctx context.Context) (int, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithSweepSchedule sets the cron spec for the stuck-item sweep.
// Supports standard 5-field cron and descriptors like "@every 15s".
func WithSweepSchedule(spec string) Option {
	return func(r *Runner) { r.sweepSpec = spec }
}

// cronParser supports standard 5-field cron and descriptors.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Runner invokes RunCycle on demand and SweepStuck on a fixed period.
// Trigger signals are coalesced: many triggers while a cycle is pending
// collapse into one.
type Runner struct {
	engine    Engine
	cron      *cronlib.Cron
	trigger   chan struct{}
	sweepSpec string
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRunner creates a Runner over the engine.
func NewRunner(eng Engine, opts ...Option) *Runner {
	r := &Runner{
		engine:    eng,
		cron:      cronlib.New(cronlib.WithParser(cronParser)),
		trigger:   make(chan struct{}, 1),
		sweepSpec: "@every 15s",
		logger:    slog.Default(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TriggerDispatch requests a dispatch cycle. Non-blocking and
// fire-and-forget; safe to call from any goroutine. Wire it into the
// engine via engine.WithTrigger.
func (r *Runner) TriggerDispatch() {
	select {
	case r.trigger <- struct{}{}:
	default:
		// A cycle request is already queued; coalesce.
	}
}

// Start launches the sweep cron and the dispatch loop. It returns
// immediately.
func (r *Runner) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	r.running = true

	if _, err := r.cron.AddFunc(r.sweepSpec, r.runSweep); err != nil {
		r.running = false
		return err
	}
	r.cron.Start()

	r.wg.Add(1)
	go r.dispatchLoop()

	r.logger.Info("schedule runner started", slog.String("sweep", r.sweepSpec))
	return nil
}

// Stop halts the cron and the dispatch loop and waits for them.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	cronCtx := r.cron.Stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		<-cronCtx.Done()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchLoop services trigger signals until stopped.
func (r *Runner) dispatchLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.trigger:
			r.runCycle()
		}
	}
}

// runCycle executes one cycle. A rate-limited outcome re-arms the trigger
// after the remaining wait so a forced batch is not lost.
func (r *Runner) runCycle() {
	res, err := r.engine.RunCycle(context.Background())
	if err != nil {
		r.logger.Error("dispatch cycle failed", "error", err)
		return
	}

	if res.Outcome == dispatcher.OutcomeRateLimited && res.Wait > 0 {
		wait := res.Wait
		time.AfterFunc(wait, r.TriggerDispatch)
		r.logger.Debug("dispatch deferred by rate floor", slog.Duration("wait", wait))
	}
}

// runSweep executes one stuck-item sweep.
func (r *Runner) runSweep() {
	n, err := r.engine.SweepStuck(context.Background())
	if err != nil {
		r.logger.Error("stuck-item sweep failed", "error", err)
		return
	}
	if n > 0 {
		// Recovered items sit in pending; make sure a cycle follows.
		r.TriggerDispatch()
	}
}
