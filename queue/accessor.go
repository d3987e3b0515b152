package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hookrelay/hookrelay/id"
)

// TriggerFunc requests a dispatch cycle from the surrounding scheduler.
// It must not block: the signal is advisory and fire-and-forget — the cycle
// re-checks conditions after acquiring the lock, so double-signals are
// harmless.
type TriggerFunc func()

// AccessorOption configures an Accessor.
type AccessorOption func(*Accessor)

// WithTrigger sets the dispatch trigger callback.
func WithTrigger(fn TriggerFunc) AccessorOption {
	return func(a *Accessor) { a.trigger = fn }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) AccessorOption {
	return func(a *Accessor) { a.logger = l }
}

// Accessor wraps a Store with the domain's queue semantics: enqueue with
// trigger evaluation, batch extraction, depth/stats reads, and the
// administrative reset.
type Accessor struct {
	store     Store
	batchSize int
	maxDelay  time.Duration
	trigger   TriggerFunc
	logger    *slog.Logger
}

// NewAccessor creates an Accessor. batchSize and maxDelay parameterize the
// dispatch trigger predicate.
func NewAccessor(store Store, batchSize int, maxDelay time.Duration, opts ...AccessorOption) *Accessor {
	a := &Accessor{
		store:     store,
		batchSize: batchSize,
		maxDelay:  maxDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enqueue appends a new item to Pending, bumps the queued counter, and
// fires the dispatch trigger when the batch is full or the oldest pending
// item has waited past MaxDelay. The item is not buffered in memory: if the
// store is unreachable the call fails and the caller decides whether to
// retry or drop.
func (a *Accessor) Enqueue(ctx context.Context, payload []byte, target string) (id.ItemID, error) {
	item := New(payload, target)

	if err := a.store.AppendPending(ctx, item); err != nil {
		return id.Nil, fmt.Errorf("hookrelay/queue: enqueue: %w", err)
	}

	if err := a.store.IncrCounter(ctx, CounterQueued); err != nil {
		a.logger.Warn("queued counter increment failed", "error", err)
	}

	due, err := a.dispatchDue(ctx)
	if err != nil {
		// The item is safely queued; a failed predicate read only delays
		// the trigger until the next enqueue or periodic sweep.
		a.logger.Warn("trigger predicate evaluation failed", "error", err)
		return item.ID, nil
	}
	if due && a.trigger != nil {
		a.logger.Debug("dispatch cycle requested",
			slog.String("item_id", item.ID.String()),
		)
		a.trigger()
	}

	return item.ID, nil
}

// dispatchDue evaluates the trigger predicate:
// len(Pending) >= batchSize OR age(oldest pending) >= maxDelay.
func (a *Accessor) dispatchDue(ctx context.Context) (bool, error) {
	depth, err := a.store.PendingLen(ctx)
	if err != nil {
		return false, err
	}
	if depth >= a.batchSize {
		return true, nil
	}
	if a.maxDelay <= 0 || depth == 0 {
		return false, nil
	}

	oldest, err := a.store.PendingOldest(ctx)
	if err != nil {
		return false, err
	}
	if oldest == nil {
		return false, nil
	}
	return oldest.Age(time.Now().UTC()) >= a.maxDelay, nil
}

// ExtractBatch atomically claims up to n pending items, moving them to
// In-Flight in FIFO order. An empty batch is not an error.
func (a *Accessor) ExtractBatch(ctx context.Context, n int) ([]*Item, error) {
	items, err := a.store.MoveToInFlight(ctx, n, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("hookrelay/queue: extract batch: %w", err)
	}
	return items, nil
}

// Depths returns the current Pending and In-Flight list lengths.
func (a *Accessor) Depths(ctx context.Context) (pending, inFlight int, err error) {
	pending, err = a.store.PendingLen(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("hookrelay/queue: pending depth: %w", err)
	}
	inFlight, err = a.store.InFlightLen(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("hookrelay/queue: in-flight depth: %w", err)
	}
	return pending, inFlight, nil
}

// Stats returns a snapshot of the queued/sent/failed counters.
func (a *Accessor) Stats(ctx context.Context) (Stats, error) {
	return a.store.Stats(ctx)
}

// Store exposes the underlying store for the dispatcher's per-item state
// transitions.
func (a *Accessor) Store() Store { return a.store }

// Reset unconditionally deletes all queue state. Destructive; no undo.
// Intended only for disaster recovery, never for normal operation.
func (a *Accessor) Reset(ctx context.Context) error {
	a.logger.Error("RESETTING CALLBACK QUEUE: all pending and in-flight items will be destroyed")
	if err := a.store.ResetQueue(ctx); err != nil {
		return fmt.Errorf("hookrelay/queue: reset: %w", err)
	}
	return nil
}
