// Package memory provides a fully in-memory coordination store. Safe for
// concurrent access. Intended for unit testing and development; TTLs are
// honored lazily on read.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hookrelay/hookrelay"
	"github.com/hookrelay/hookrelay/id"
	"github.com/hookrelay/hookrelay/lock"
	"github.com/hookrelay/hookrelay/queue"
	"github.com/hookrelay/hookrelay/rate"
)

// Ensure Store implements every subsystem interface at compile time.
var (
	_ queue.Store = (*Store)(nil)
	_ lock.Store  = (*Store)(nil)
	_ rate.Store  = (*Store)(nil)
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	pending  []*queue.Item
	inFlight []*queue.Item

	counters map[queue.Counter]uint64

	lockHolder  string
	lockExpires time.Time

	lastDispatch    time.Time
	lastDispatchOK  bool
	lastDispatchTTL time.Time
}

// New returns a new empty Store.
func New() *Store {
	return &Store{counters: make(map[queue.Counter]uint64)}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Queue store
// ──────────────────────────────────────────────────

// AppendPending appends the item to the tail of the pending list.
func (m *Store) AppendPending(_ context.Context, item *queue.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *item
	m.pending = append(m.pending, &cp)
	return nil
}

// PendingLen returns the pending list depth.
func (m *Store) PendingLen(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending), nil
}

// InFlightLen returns the in-flight list depth.
func (m *Store) InFlightLen(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight), nil
}

// PendingOldest returns the head of the pending list, or nil when empty.
func (m *Store) PendingOldest(_ context.Context) (*queue.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return nil, nil
	}
	cp := *m.pending[0]
	return &cp, nil
}

// MoveToInFlight atomically moves up to n items from pending to in-flight.
func (m *Store) MoveToInFlight(_ context.Context, n int, claimedAt time.Time) ([]*queue.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n > len(m.pending) {
		n = len(m.pending)
	}
	if n <= 0 {
		return nil, nil
	}

	moved := m.pending[:n]
	m.pending = m.pending[n:]

	out := make([]*queue.Item, 0, n)
	for _, item := range moved {
		t := claimedAt
		item.ClaimedAt = &t
		m.inFlight = append(m.inFlight, item)

		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

// RemoveInFlight removes a terminally resolved item.
func (m *Store) RemoveInFlight(_ context.Context, itemID id.ItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, item := range m.inFlight {
		if item.ID.String() == itemID.String() {
			m.inFlight = append(m.inFlight[:i], m.inFlight[i+1:]...)
			return nil
		}
	}
	return hookrelay.ErrItemNotFound
}

// SetAttempts persists the attempt counter of an in-flight item.
func (m *Store) SetAttempts(_ context.Context, itemID id.ItemID, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range m.inFlight {
		if item.ID.String() == itemID.String() {
			item.AttemptCount = attempts
			return nil
		}
	}
	return hookrelay.ErrItemNotFound
}

// RequeueStale moves stale in-flight items back to the pending tail.
func (m *Store) RequeueStale(_ context.Context, olderThan time.Duration) ([]id.ItemID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)

	var requeued []id.ItemID
	var keep []*queue.Item
	for _, item := range m.inFlight {
		stale := olderThan <= 0 || (item.ClaimedAt != nil && item.ClaimedAt.Before(cutoff))
		if stale {
			item.ClaimedAt = nil
			m.pending = append(m.pending, item)
			requeued = append(requeued, item.ID)
			continue
		}
		keep = append(keep, item)
	}
	m.inFlight = keep
	return requeued, nil
}

// IncrCounter increments a stats counter.
func (m *Store) IncrCounter(_ context.Context, c queue.Counter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[c]++
	return nil
}

// Stats returns a snapshot of the counters.
func (m *Store) Stats(_ context.Context) (queue.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return queue.Stats{
		Queued: m.counters[queue.CounterQueued],
		Sent:   m.counters[queue.CounterSent],
		Failed: m.counters[queue.CounterFailed],
	}, nil
}

// ResetQueue deletes both lists and all counters.
func (m *Store) ResetQueue(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = nil
	m.inFlight = nil
	m.counters = make(map[queue.Counter]uint64)
	return nil
}

// ──────────────────────────────────────────────────
// Lock store
// ──────────────────────────────────────────────────

// lockLiveLocked reports whether an unexpired lock exists. Caller holds mu.
func (m *Store) lockLiveLocked() bool {
	return m.lockHolder != "" && time.Now().Before(m.lockExpires)
}

// AcquireLock creates the lock record only if absent (or expired).
func (m *Store) AcquireLock(_ context.Context, holder string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lockLiveLocked() {
		return false, nil
	}
	m.lockHolder = holder
	m.lockExpires = time.Now().Add(ttl)
	return true, nil
}

// ReleaseLock deletes the lock only while still held by holder.
func (m *Store) ReleaseLock(_ context.Context, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lockLiveLocked() || m.lockHolder != holder {
		return hookrelay.ErrLockNotHeld
	}
	m.lockHolder = ""
	return nil
}

// RenewLock extends the TTL while still held by holder.
func (m *Store) RenewLock(_ context.Context, holder string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lockLiveLocked() || m.lockHolder != holder {
		return false, nil
	}
	m.lockExpires = time.Now().Add(ttl)
	return true, nil
}

// LockHolder returns the current holder, or "" when free or expired.
func (m *Store) LockHolder(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lockLiveLocked() {
		return "", nil
	}
	return m.lockHolder, nil
}

// ForceReleaseLock unconditionally clears the lock.
func (m *Store) ForceReleaseLock(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockHolder = ""
	return nil
}

// ──────────────────────────────────────────────────
// Rate store
// ──────────────────────────────────────────────────

// LastDispatch returns the rate marker, honoring its TTL.
func (m *Store) LastDispatch(_ context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastDispatchOK || time.Now().After(m.lastDispatchTTL) {
		return time.Time{}, false, nil
	}
	return m.lastDispatch, true, nil
}

// MarkDispatched records the marker with its TTL.
func (m *Store) MarkDispatched(_ context.Context, t time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastDispatch = t
	m.lastDispatchOK = true
	m.lastDispatchTTL = time.Now().Add(ttl)
	return nil
}

// ClearRateMarker deletes the marker.
func (m *Store) ClearRateMarker(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastDispatchOK = false
	return nil
}
