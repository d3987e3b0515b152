// Package sender performs the outbound callback delivery. The engine
// treats Sender as an opaque call: success removes the item, failure feeds
// the retry path. The shipped HTTP implementation posts a codec-encoded
// delivery envelope with an optional HMAC signature.
package sender

import (
	"context"
	"time"

	"github.com/hookrelay/hookrelay/id"
)

// Delivery is one callback notification handed to a Sender.
type Delivery struct {
	// ID identifies the queue item being delivered. Receivers can use it
	// to de-duplicate the rare double-dispatch.
	ID id.ItemID `json:"id" msgpack:"id"`

	// Payload is the opaque notification body.
	Payload []byte `json:"payload" msgpack:"payload"`

	// Target is the destination URL.
	Target string `json:"-" msgpack:"-"`

	// Attempt is the 0-indexed delivery attempt number.
	Attempt int `json:"attempt" msgpack:"attempt"`

	// QueuedAt is when the producer enqueued the notification.
	QueuedAt time.Time `json:"queued_at" msgpack:"queued_at"`
}

// Sender delivers a callback to its target. Implementations must honor ctx
// cancellation; the dispatcher bounds every call with the configured send
// timeout.
type Sender interface {
	Send(ctx context.Context, d *Delivery) error
}

// Func adapts a plain function to the Sender interface.
type Func func(ctx context.Context, d *Delivery) error

// Send calls f.
func (f Func) Send(ctx context.Context, d *Delivery) error { return f(ctx, d) }
