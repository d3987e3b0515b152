// Package lock provides the single-active-dispatcher mutual exclusion
// primitive. The lock is a single store record created with an atomic
// conditional-set-with-expiry; it expires on its own if the holder crashes
// without releasing it.
//
// Contention is not an error: a failed acquire means another process is
// actively dispatching, and the caller simply skips its cycle.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hookrelay/hookrelay/id"
)

// Store is the lock persistence contract implemented by every backend.
//
// AcquireLock MUST be a single atomic conditional-set-with-expiry, never a
// read-then-write pair. ReleaseLock MUST only delete the record while it is
// still held by the given holder.
type Store interface {
	// AcquireLock creates the lock record with the given TTL if, and only
	// if, no record exists. Returns true when the lock was acquired.
	AcquireLock(ctx context.Context, holder string, ttl time.Duration) (bool, error)

	// ReleaseLock deletes the lock record if it is still held by holder.
	// Returns hookrelay.ErrLockNotHeld when another holder owns it or it
	// has expired.
	ReleaseLock(ctx context.Context, holder string) error

	// RenewLock extends the TTL if the lock is still held by holder.
	// Returns false (without error) when ownership has lapsed.
	RenewLock(ctx context.Context, holder string, ttl time.Duration) (bool, error)

	// LockHolder returns the current holder, or "" when the lock is free.
	LockHolder(ctx context.Context) (string, error)

	// ForceReleaseLock unconditionally deletes the lock record.
	// Administrative escape hatch only.
	ForceReleaseLock(ctx context.Context) error
}

// Guard wraps a Store with a per-process holder identity.
type Guard struct {
	store  Store
	holder id.HolderID
	logger *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = l }
}

// WithHolderID overrides the generated holder identity. Useful in tests
// that simulate multiple processes.
func WithHolderID(holder id.HolderID) GuardOption {
	return func(g *Guard) { g.holder = holder }
}

// NewGuard creates a Guard with a fresh holder identity.
func NewGuard(store Store, opts ...GuardOption) *Guard {
	g := &Guard{
		store:  store,
		holder: id.NewHolderID(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HolderID returns the guard's holder identity.
func (g *Guard) HolderID() id.HolderID { return g.holder }

// Acquisition is the outcome of an Acquire attempt: either Acquired with a
// Handle for release and renewal, or Contended with no handle.
type Acquisition struct {
	handle *Handle
}

// Acquired reports whether the lock was obtained.
func (a Acquisition) Acquired() bool { return a.handle != nil }

// Handle returns the lock handle, or nil when the attempt was contended.
func (a Acquisition) Handle() *Handle { return a.handle }

// Acquire attempts to take the scheduler lock with the given TTL. A
// contended outcome is expected and silent: it means another process is
// mid-cycle and this one should skip.
func (g *Guard) Acquire(ctx context.Context, ttl time.Duration) (Acquisition, error) {
	ok, err := g.store.AcquireLock(ctx, g.holder.String(), ttl)
	if err != nil {
		return Acquisition{}, fmt.Errorf("hookrelay/lock: acquire: %w", err)
	}
	if !ok {
		return Acquisition{}, nil
	}
	return Acquisition{handle: &Handle{guard: g, ttl: ttl}}, nil
}

// Holder returns the current lock holder, or "" when the lock is free.
func (g *Guard) Holder(ctx context.Context) (string, error) {
	holder, err := g.store.LockHolder(ctx)
	if err != nil {
		return "", fmt.Errorf("hookrelay/lock: holder: %w", err)
	}
	return holder, nil
}

// ForceRelease unconditionally deletes the lock record regardless of
// holder. Administrative use only; logged loudly.
func (g *Guard) ForceRelease(ctx context.Context) error {
	g.logger.Warn("force-releasing scheduler lock")
	if err := g.store.ForceReleaseLock(ctx); err != nil {
		return fmt.Errorf("hookrelay/lock: force release: %w", err)
	}
	return nil
}

// Handle represents a successfully acquired lock. It carries the holder
// identity needed for safe release: releasing only while still the owner
// avoids deleting a lock a different process acquired after this holder's
// TTL silently expired mid-cycle.
type Handle struct {
	guard *Guard
	ttl   time.Duration
}

// Release deletes the lock if this holder still owns it.
func (h *Handle) Release(ctx context.Context) error {
	if err := h.guard.store.ReleaseLock(ctx, h.guard.holder.String()); err != nil {
		return fmt.Errorf("hookrelay/lock: release: %w", err)
	}
	return nil
}

// StillHeld re-checks ownership. The dispatcher calls this before
// committing state changes so an overlong cycle that outlived its TTL can
// abort instead of continuing unprotected.
func (h *Handle) StillHeld(ctx context.Context) (bool, error) {
	holder, err := h.guard.store.LockHolder(ctx)
	if err != nil {
		return false, fmt.Errorf("hookrelay/lock: still held: %w", err)
	}
	return holder == h.guard.holder.String(), nil
}

// Renew extends the lock's TTL if this holder still owns it. Returns false
// when ownership has lapsed, in which case the cycle should abort.
func (h *Handle) Renew(ctx context.Context) (bool, error) {
	ok, err := h.guard.store.RenewLock(ctx, h.guard.holder.String(), h.ttl)
	if err != nil {
		return false, fmt.Errorf("hookrelay/lock: renew: %w", err)
	}
	return ok, nil
}
