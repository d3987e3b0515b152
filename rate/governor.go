// Package rate enforces the global floor between dispatch cycle starts.
// The last-dispatch timestamp lives in the shared store so the floor holds
// across processes, and carries its own short TTL so a crashed process
// cannot permanently freeze future dispatches.
package rate

import (
	"context"
	"fmt"
	"time"
)

// markerTTLFactor is how many multiples of the minimum interval the rate
// marker survives before expiring on its own.
const markerTTLFactor = 4

// Store is the rate marker persistence contract implemented by every
// backend.
type Store interface {
	// LastDispatch returns the recorded start time of the most recent
	// dispatch cycle. ok is false when no marker exists (none recorded,
	// or the marker's TTL lapsed).
	LastDispatch(ctx context.Context) (t time.Time, ok bool, err error)

	// MarkDispatched records t as the latest cycle start, expiring after
	// ttl.
	MarkDispatched(ctx context.Context, t time.Time, ttl time.Duration) error

	// ClearRateMarker deletes the marker. Administrative reset only.
	ClearRateMarker(ctx context.Context) error
}

// Governor gates dispatch cycles to at most one per MinInterval, globally.
type Governor struct {
	store       Store
	minInterval time.Duration
}

// NewGovernor creates a Governor with the given global minimum interval
// between cycle starts.
func NewGovernor(store Store, minInterval time.Duration) *Governor {
	return &Governor{store: store, minInterval: minInterval}
}

// CheckInterval returns 0 when a cycle may start now, or the remaining
// wait until the interval floor is satisfied.
func (g *Governor) CheckInterval(ctx context.Context) (time.Duration, error) {
	if g.minInterval <= 0 {
		return 0, nil
	}

	last, ok, err := g.store.LastDispatch(ctx)
	if err != nil {
		return 0, fmt.Errorf("hookrelay/rate: check interval: %w", err)
	}
	if !ok {
		return 0, nil
	}

	elapsed := time.Now().UTC().Sub(last)
	if elapsed >= g.minInterval {
		return 0, nil
	}
	return g.minInterval - elapsed, nil
}

// MarkDispatched records the start of a cycle. The marker's TTL is a few
// multiples of the interval, independent of the lock TTL, so a missed
// update self-heals.
func (g *Governor) MarkDispatched(ctx context.Context) error {
	ttl := g.minInterval * markerTTLFactor
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := g.store.MarkDispatched(ctx, time.Now().UTC(), ttl); err != nil {
		return fmt.Errorf("hookrelay/rate: mark dispatched: %w", err)
	}
	return nil
}

// Last returns the recorded last dispatch time for status reporting.
// The zero time means no cycle is on record.
func (g *Governor) Last(ctx context.Context) (time.Time, error) {
	last, ok, err := g.store.LastDispatch(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("hookrelay/rate: last: %w", err)
	}
	if !ok {
		return time.Time{}, nil
	}
	return last, nil
}
