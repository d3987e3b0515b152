package queue

import (
	"context"
	"time"

	"github.com/hookrelay/hookrelay/id"
)

// Counter names a stats counter. Counters are monotonically increasing and
// approximate: they are not transactionally tied to item state and exist
// for observability, not correctness.
type Counter string

// Stats counters tracked by every backend.
const (
	CounterQueued Counter = "queued"
	CounterSent   Counter = "sent"
	CounterFailed Counter = "failed"
)

// Stats is a point-in-time snapshot of the queue counters.
type Stats struct {
	Queued uint64 `json:"queued"`
	Sent   uint64 `json:"sent"`
	Failed uint64 `json:"failed"`
}

// Store is the queue persistence contract implemented by every backend.
//
// MoveToInFlight and RequeueStale MUST be atomic at the store level (a
// transaction, a server-side script, or an equivalent primitive): no
// concurrent caller may observe or claim an item mid-move. The other
// methods are single-key operations.
type Store interface {
	// AppendPending appends the item to the tail of the Pending list.
	AppendPending(ctx context.Context, item *Item) error

	// PendingLen returns the current depth of the Pending list.
	PendingLen(ctx context.Context) (int, error)

	// InFlightLen returns the current depth of the In-Flight list.
	InFlightLen(ctx context.Context) (int, error)

	// PendingOldest returns the item at the head of the Pending list, or
	// nil if the list is empty.
	PendingOldest(ctx context.Context) (*Item, error)

	// MoveToInFlight atomically moves up to n items from the head of
	// Pending to the tail of In-Flight, preserving order, stamping each
	// with claimedAt. Returns the moved items; an empty result is not an
	// error.
	MoveToInFlight(ctx context.Context, n int, claimedAt time.Time) ([]*Item, error)

	// RemoveInFlight removes a terminally resolved item from In-Flight
	// and deletes its body. Returns hookrelay.ErrItemNotFound if the item
	// is not in flight (e.g. already recovered by the sweeper).
	RemoveInFlight(ctx context.Context, itemID id.ItemID) error

	// SetAttempts persists the attempt counter of an in-flight item.
	SetAttempts(ctx context.Context, itemID id.ItemID, attempts int) error

	// RequeueStale atomically moves every In-Flight item claimed more
	// than olderThan ago back to the tail of Pending, clearing its claim
	// timestamp but preserving its attempt count. olderThan <= 0 requeues
	// everything in flight. Returns the requeued item IDs.
	RequeueStale(ctx context.Context, olderThan time.Duration) ([]id.ItemID, error)

	// IncrCounter increments a stats counter by one.
	IncrCounter(ctx context.Context, c Counter) error

	// Stats returns a snapshot of the stats counters.
	Stats(ctx context.Context) (Stats, error)

	// ResetQueue unconditionally deletes both lists, every item body, and
	// all counters. Disaster recovery only.
	ResetQueue(ctx context.Context) error
}
