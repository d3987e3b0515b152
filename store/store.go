// Package store defines the aggregate coordination-store interface. Each
// subsystem (queue, lock, rate) defines its own store interface; the
// composite Store composes them all. Backends: Redis, Postgres, and Memory.
//
// The contract every backend must honor: conditional-set-with-TTL for the
// lock, an atomic "move first N of list A to end of list B" for batch
// extraction and stale requeue, atomic counter increments, and TTL expiry
// of the lock and rate marker. A Redis-compatible store satisfies all of
// these natively; relational backends use transactions.
package store

import (
	"context"

	"github.com/hookrelay/hookrelay/lock"
	"github.com/hookrelay/hookrelay/queue"
	"github.com/hookrelay/hookrelay/rate"
)

// Store is the aggregate coordination-store interface.
// A single backend (redis, postgres, memory) implements all of it.
type Store interface {
	queue.Store
	lock.Store
	rate.Store

	// Migrate prepares backend schema where applicable.
	Migrate(ctx context.Context) error

	// Ping checks store connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
