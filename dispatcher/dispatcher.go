package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"

	"github.com/hookrelay/hookrelay"
	"github.com/hookrelay/hookrelay/backoff"
	"github.com/hookrelay/hookrelay/lock"
	"github.com/hookrelay/hookrelay/queue"
	"github.com/hookrelay/hookrelay/rate"
	"github.com/hookrelay/hookrelay/sender"
)

// Outcome classifies how a dispatch cycle ended.
type Outcome string

const (
	// OutcomeContended means another process holds the scheduler lock;
	// the cycle was skipped entirely. Not an error.
	OutcomeContended Outcome = "contended"
	// OutcomeRateLimited means the lock was acquired but the global rate
	// floor has not elapsed; the lock was released and the cycle skipped.
	OutcomeRateLimited Outcome = "rate_limited"
	// OutcomeEmpty means the pending list had nothing to extract.
	OutcomeEmpty Outcome = "empty"
	// OutcomeCompleted means the batch was processed to the end.
	OutcomeCompleted Outcome = "completed"
	// OutcomeAborted means lock ownership lapsed mid-cycle and the cycle
	// stopped committing state; remaining items are left for the sweeper.
	OutcomeAborted Outcome = "aborted"
)

// CycleResult reports what one RunCycle invocation did.
type CycleResult struct {
	Outcome     Outcome
	Extracted   int
	Sent        int
	Failed      int // terminal drops
	Rescheduled int // delayed resends queued in-process
	Wait        time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithBackoff sets the resend countdown strategy. Defaults to linear over
// the configured retry backoff base.
func WithBackoff(b backoff.Strategy) Option {
	return func(d *Dispatcher) { d.bo = b }
}

// WithTrigger sets the callback used to request a follow-up cycle when
// Pending is still non-empty after draining.
func WithTrigger(fn queue.TriggerFunc) Option {
	return func(d *Dispatcher) { d.trigger = fn }
}

// Dispatcher executes dispatch cycles. Construct one per process and share
// it; it is safe for concurrent use, though concurrent RunCycle calls
// simply contend on the store-level lock.
type Dispatcher struct {
	queue    *queue.Accessor
	guard    *lock.Guard
	governor *rate.Governor
	send     sender.Sender
	bo       backoff.Strategy
	cfg      hookrelay.Config
	spacing  *xrate.Limiter
	trigger  queue.TriggerFunc
	logger   *slog.Logger

	// Delayed resends run in-process; baseCtx cancels them on Close.
	baseCtx  context.Context
	cancel   context.CancelFunc
	resendWG sync.WaitGroup
}

// New creates a Dispatcher.
func New(
	acc *queue.Accessor,
	guard *lock.Guard,
	governor *rate.Governor,
	snd sender.Sender,
	cfg hookrelay.Config,
	opts ...Option,
) *Dispatcher {
	baseCtx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:    acc,
		guard:    guard,
		governor: governor,
		send:     snd,
		bo:       backoff.Default(cfg.RetryBackoffBase),
		cfg:      cfg,
		spacing:  spacingLimiter(cfg.InterItemSpacing),
		logger:   slog.Default(),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// spacingLimiter builds the shared outbound pacing limiter. Resends share
// it with cycle sends so the inter-item spacing holds in aggregate.
func spacingLimiter(spacing time.Duration) *xrate.Limiter {
	if spacing <= 0 {
		return xrate.NewLimiter(xrate.Inf, 1)
	}
	return xrate.NewLimiter(xrate.Every(spacing), 1)
}

// RunCycle executes one dispatch cycle:
// lock-acquire → rate-check → extract → send each with spacing → drain.
// A contended lock or unexpired rate floor is a silent skip, not an error.
func (d *Dispatcher) RunCycle(ctx context.Context) (CycleResult, error) {
	acq, err := d.guard.Acquire(ctx, d.cfg.LockTTL)
	if err != nil {
		return CycleResult{}, err
	}
	if !acq.Acquired() {
		d.logger.Debug("dispatch cycle skipped: lock contended")
		return CycleResult{Outcome: OutcomeContended}, nil
	}
	handle := acq.Handle()

	wait, err := d.governor.CheckInterval(ctx)
	if err != nil {
		d.releaseQuietly(ctx, handle)
		return CycleResult{}, err
	}
	if wait > 0 {
		d.releaseQuietly(ctx, handle)
		d.logger.Debug("dispatch cycle skipped: rate floor", slog.Duration("wait", wait))
		return CycleResult{Outcome: OutcomeRateLimited, Wait: wait}, nil
	}

	batch, err := d.queue.ExtractBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		d.releaseQuietly(ctx, handle)
		return CycleResult{}, err
	}
	if len(batch) == 0 {
		d.releaseQuietly(ctx, handle)
		return CycleResult{Outcome: OutcomeEmpty}, nil
	}

	d.logger.Info("dispatch cycle started",
		slog.Int("batch", len(batch)),
		slog.String("holder", d.guard.HolderID().String()),
	)

	res := CycleResult{Outcome: OutcomeCompleted, Extracted: len(batch)}
	acquiredAt := time.Now()

	for _, item := range batch {
		if err := d.spacing.Wait(ctx); err != nil {
			d.releaseQuietly(ctx, handle)
			return res, fmt.Errorf("hookrelay/dispatcher: spacing wait: %w", err)
		}

		// Keep the lock alive on long batches; abort if ownership lapsed
		// so a second cycle elsewhere is not raced on item state.
		if time.Since(acquiredAt) > d.cfg.LockTTL/2 {
			held, renewErr := handle.Renew(ctx)
			if renewErr != nil {
				d.releaseQuietly(ctx, handle)
				return res, renewErr
			}
			if !held {
				d.logger.Warn("lock ownership lapsed mid-cycle, aborting")
				res.Outcome = OutcomeAborted
				return res, nil
			}
			acquiredAt = time.Now()
		}

		sent, terminal := d.sendOnce(d.baseCtx, item)
		switch {
		case sent:
			res.Sent++
		case terminal:
			res.Failed++
		default:
			res.Rescheduled++
		}
	}

	// Draining: release, stamp the rate marker, and chase a non-empty
	// pending list with another trigger (rate-governed on the next pass).
	d.releaseQuietly(ctx, handle)
	if err := d.governor.MarkDispatched(ctx); err != nil {
		d.logger.Warn("rate marker update failed", "error", err)
	}

	pending, _, err := d.queue.Depths(ctx)
	if err != nil {
		d.logger.Warn("post-cycle depth check failed", "error", err)
	} else if pending > 0 && d.trigger != nil {
		d.trigger()
	}

	d.logger.Info("dispatch cycle finished",
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
		slog.Int("rescheduled", res.Rescheduled),
	)
	return res, nil
}

// sendOnce attempts one delivery of an in-flight item and commits its
// outcome: removal on success, terminal drop on retry exhaustion, or an
// in-process delayed resend otherwise.
func (d *Dispatcher) sendOnce(ctx context.Context, item *queue.Item) (sent, terminal bool) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	err := d.send.Send(sendCtx, &sender.Delivery{
		ID:       item.ID,
		Payload:  item.Payload,
		Target:   item.Target,
		Attempt:  item.AttemptCount,
		QueuedAt: item.QueuedAt,
	})
	cancel()

	if err == nil {
		d.resolve(ctx, item, queue.CounterSent)
		return true, false
	}

	item.AttemptCount++
	if item.AttemptCount > d.cfg.MaxRetries {
		d.logger.Warn("callback dropped after exhausting retries",
			slog.String("item_id", item.ID.String()),
			slog.String("target", item.Target),
			slog.Int("attempts", item.AttemptCount),
		)
		d.resolve(ctx, item, queue.CounterFailed)
		return false, true
	}

	if setErr := d.queue.Store().SetAttempts(ctx, item.ID, item.AttemptCount); setErr != nil {
		d.logger.Warn("attempt count update failed",
			slog.String("item_id", item.ID.String()),
			"error", setErr,
		)
	}
	d.scheduleResend(item)
	return false, false
}

// resolve removes a terminally settled item from In-Flight and bumps the
// given counter. A missing item means the sweeper already recovered it,
// which is fine: it will be re-delivered and the receiver de-duplicates.
func (d *Dispatcher) resolve(ctx context.Context, item *queue.Item, c queue.Counter) {
	if err := d.queue.Store().RemoveInFlight(ctx, item.ID); err != nil {
		if errors.Is(err, hookrelay.ErrItemNotFound) {
			d.logger.Debug("item already recovered by sweeper",
				slog.String("item_id", item.ID.String()),
			)
			return
		}
		d.logger.Warn("in-flight removal failed",
			slog.String("item_id", item.ID.String()),
			"error", err,
		)
		return
	}
	if err := d.queue.Store().IncrCounter(ctx, c); err != nil {
		d.logger.Warn("counter increment failed", slog.String("counter", string(c)), "error", err)
	}
}

// scheduleResend queues a delayed in-process resend with the backoff
// countdown. The item stays in In-Flight the whole time, so a process
// crash here is recovered by the stuck-item sweeper.
func (d *Dispatcher) scheduleResend(item *queue.Item) {
	delay := d.bo.Delay(item.AttemptCount)
	d.logger.Info("callback resend scheduled",
		slog.String("item_id", item.ID.String()),
		slog.Int("attempt", item.AttemptCount),
		slog.Duration("countdown", delay),
	)

	d.resendWG.Add(1)
	go func() {
		defer d.resendWG.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-d.baseCtx.Done():
			return
		}

		if err := d.spacing.Wait(d.baseCtx); err != nil {
			return
		}
		d.sendOnce(d.baseCtx, item)
	}()
}

// releaseQuietly releases the lock, tolerating a TTL expiry that already
// handed the lock to someone else.
func (d *Dispatcher) releaseQuietly(ctx context.Context, handle *lock.Handle) {
	if err := handle.Release(ctx); err != nil {
		if errors.Is(err, hookrelay.ErrLockNotHeld) {
			d.logger.Debug("lock already expired at release")
			return
		}
		d.logger.Warn("lock release failed", "error", err)
	}
}

// Close cancels outstanding delayed resends and waits for them, bounded by
// ctx. Items whose resends were cancelled remain in-flight and are
// recovered by the sweeper.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.resendWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hookrelay/dispatcher: close: %w", ctx.Err())
	}
}
