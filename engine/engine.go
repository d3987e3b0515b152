// Package engine wires all hookrelay subsystems together: the queue
// accessor, scheduler lock guard, rate governor, dispatcher, and sweeper,
// over one store and one sender. Construct a single Engine per process at
// startup and pass it by reference; there is no hidden global instance,
// which also makes unit testing with the memory store trivial.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hookrelay/hookrelay"
	"github.com/hookrelay/hookrelay/backoff"
	"github.com/hookrelay/hookrelay/dispatcher"
	"github.com/hookrelay/hookrelay/id"
	"github.com/hookrelay/hookrelay/lock"
	mw "github.com/hookrelay/hookrelay/middleware"
	"github.com/hookrelay/hookrelay/queue"
	"github.com/hookrelay/hookrelay/rate"
	"github.com/hookrelay/hookrelay/sender"
	"github.com/hookrelay/hookrelay/store"
)

// Status is the operator-facing snapshot of engine state.
type Status struct {
	PendingCount   int       `json:"pending_count"`
	InFlightCount  int       `json:"in_flight_count"`
	Queued         uint64    `json:"queued"`
	Sent           uint64    `json:"sent"`
	Failed         uint64    `json:"failed"`
	LockHeldBy     string    `json:"lock_held_by,omitempty"`
	LastDispatchAt time.Time `json:"last_dispatch_at,omitzero"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by all subsystems.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBackoff sets the resend countdown strategy. If not set, a linear
// strategy over Config.RetryBackoffBase is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) { e.bo = b }
}

// WithMiddleware appends middleware to the send chain, inside the default
// logging and recovery wrappers.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithTrigger sets the fire-and-forget dispatch trigger invoked by Enqueue
// and by post-cycle draining. Typically schedule.Runner's TriggerDispatch.
func WithTrigger(fn queue.TriggerFunc) Option {
	return func(e *Engine) { e.trigger = fn }
}

// Engine is the assembled callback dispatch system.
type Engine struct {
	store    store.Store
	accessor *queue.Accessor
	guard    *lock.Guard
	governor *rate.Governor
	sweeper  *queue.Sweeper
	disp     *dispatcher.Dispatcher
	cfg      hookrelay.Config

	logger  *slog.Logger
	bo      backoff.Strategy
	mws     []mw.Middleware
	trigger queue.TriggerFunc
}

// New creates an Engine over the given store and sender.
func New(st store.Store, snd sender.Sender, cfg hookrelay.Config, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, hookrelay.ErrNoStore
	}
	if snd == nil {
		return nil, hookrelay.ErrNoSender
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:  st,
		cfg:    cfg,
		logger: slog.Default(),
		bo:     backoff.Default(cfg.RetryBackoffBase),
	}
	for _, opt := range opts {
		opt(e)
	}

	chain := append([]mw.Middleware{
		mw.Logging(e.logger),
		mw.Recover(e.logger),
	}, e.mws...)
	wrapped := mw.Wrap(snd, chain...)

	e.accessor = queue.NewAccessor(st, cfg.BatchSize, cfg.MaxDelay,
		queue.WithTrigger(e.fireTrigger),
		queue.WithLogger(e.logger),
	)
	e.guard = lock.NewGuard(st, lock.WithLogger(e.logger))
	e.governor = rate.NewGovernor(st, cfg.MinInterval)
	e.sweeper = queue.NewSweeper(st, cfg.StuckThreshold, e.logger)
	e.disp = dispatcher.New(e.accessor, e.guard, e.governor, wrapped, cfg,
		dispatcher.WithLogger(e.logger),
		dispatcher.WithBackoff(e.bo),
		dispatcher.WithTrigger(e.fireTrigger),
	)
	return e, nil
}

// fireTrigger forwards dispatch requests to the configured trigger, if any.
func (e *Engine) fireTrigger() {
	if e.trigger != nil {
		e.trigger()
	}
}

// HolderID returns this process's lock holder identity.
func (e *Engine) HolderID() id.HolderID { return e.guard.HolderID() }

// Enqueue accepts a callback notification from a producer. The caller sees
// only accept (nil error) or reject; batching, retries, and lock
// contention stay invisible.
func (e *Engine) Enqueue(ctx context.Context, payload []byte, target string) (id.ItemID, error) {
	return e.accessor.Enqueue(ctx, payload, target)
}

// RunCycle executes one dispatch cycle. Invoke it from the external
// scheduler whenever a trigger fires; redundant invocations are cheap
// no-ops (lock contention or an empty extract).
func (e *Engine) RunCycle(ctx context.Context) (dispatcher.CycleResult, error) {
	return e.disp.RunCycle(ctx)
}

// SweepStuck requeues in-flight items older than the stuck threshold.
// Invoke it on a fixed period, independent of dispatch cycles.
func (e *Engine) SweepStuck(ctx context.Context) (int, error) {
	return e.sweeper.Sweep(ctx)
}

// Status reports queue depths, stats counters, and lock/rate state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	pending, inFlight, err := e.accessor.Depths(ctx)
	if err != nil {
		return Status{}, err
	}
	stats, err := e.accessor.Stats(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("hookrelay/engine: stats: %w", err)
	}
	holder, err := e.guard.Holder(ctx)
	if err != nil {
		return Status{}, err
	}
	last, err := e.governor.Last(ctx)
	if err != nil {
		return Status{}, err
	}

	return Status{
		PendingCount:   pending,
		InFlightCount:  inFlight,
		Queued:         stats.Queued,
		Sent:           stats.Sent,
		Failed:         stats.Failed,
		LockHeldBy:     holder,
		LastDispatchAt: last,
	}, nil
}

// ForceReleaseLock unconditionally frees the scheduler lock. Use only when
// a holder is known dead and its TTL is unacceptably long to wait out.
func (e *Engine) ForceReleaseLock(ctx context.Context) error {
	return e.guard.ForceRelease(ctx)
}

// RequeueAllInFlight returns every in-flight item to the pending tail,
// regardless of staleness. Administrative recovery after a known-bad
// deploy; attempt counts are preserved.
func (e *Engine) RequeueAllInFlight(ctx context.Context) (int, error) {
	e.logger.Warn("requeueing all in-flight items")
	ids, err := e.store.RequeueStale(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("hookrelay/engine: requeue all: %w", err)
	}
	return len(ids), nil
}

// ResetAll destroys all queue, lock, and rate-marker state. Destructive
// and irreversible; disaster recovery only.
func (e *Engine) ResetAll(ctx context.Context) error {
	e.logger.Error("RESETTING ALL DISPATCH STATE: queue, lock, and rate marker will be destroyed")

	if err := e.accessor.Reset(ctx); err != nil {
		return err
	}
	if err := e.store.ForceReleaseLock(ctx); err != nil {
		return fmt.Errorf("hookrelay/engine: reset lock: %w", err)
	}
	if err := e.store.ClearRateMarker(ctx); err != nil {
		return fmt.Errorf("hookrelay/engine: reset rate marker: %w", err)
	}
	return nil
}

// Close stops the dispatcher's outstanding delayed resends, bounded by
// ctx. The store is not closed; its lifecycle belongs to the caller.
func (e *Engine) Close(ctx context.Context) error {
	return e.disp.Close(ctx)
}
