package queue

import (
	"time"

	"github.com/hookrelay/hookrelay/id"
)

// Item is a single queued callback notification.
type Item struct {
	ID id.ItemID `json:"id"`

	// Payload is the opaque notification body produced by the task
	// executor. The engine never inspects it.
	Payload []byte `json:"payload"`

	// Target is the URL the callback is delivered to.
	Target string `json:"target"`

	// QueuedAt is when the producer enqueued the item.
	QueuedAt time.Time `json:"queued_at"`

	// AttemptCount is how many deliveries have been attempted so far.
	// It survives requeue by the sweeper so retry limits keep applying.
	AttemptCount int `json:"attempt_count"`

	// ClaimedAt is when a dispatch cycle moved the item to In-Flight.
	// Nil while the item is pending. Drives staleness detection.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

// New creates a pending Item for the given payload and target.
func New(payload []byte, target string) *Item {
	return &Item{
		ID:       id.NewItemID(),
		Payload:  payload,
		Target:   target,
		QueuedAt: time.Now().UTC(),
	}
}

// Age returns how long the item has been queued.
func (i *Item) Age(now time.Time) time.Duration {
	return now.Sub(i.QueuedAt)
}

// InFlightFor returns how long the item has been claimed, or zero if it
// is not in flight.
func (i *Item) InFlightFor(now time.Time) time.Duration {
	if i.ClaimedAt == nil {
		return 0
	}
	return now.Sub(*i.ClaimedAt)
}
