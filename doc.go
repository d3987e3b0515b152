// Package hookrelay implements a distributed callback batching and dispatch
// engine. Background workers enqueue "task finished" notifications into a
// shared queue; a single active dispatcher per cycle (coordinated through a
// store-level lock) extracts rate-limited batches, delivers them to external
// endpoints with retry and backoff, and a periodic sweep recovers items
// stranded by crashed dispatchers.
//
// Hookrelay is designed as a library, not a service. Import it, configure a
// store and a sender, and drive cycles from your own scheduler (or use the
// schedule package).
//
// # Quick Start
//
//	eng, err := engine.New(redisstore.New(client), sender.NewHTTP(), hookrelay.DefaultConfig())
//	itemID, err := eng.Enqueue(ctx, payload, "https://example.com/hooks/done")
//
// # Architecture
//
// Hookrelay follows a composable store pattern where each subsystem (queue,
// lock, rate) defines its own store interface. A single backend implements
// all of them; redis, postgres, and in-memory backends ship under store/.
//
// All item IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package hookrelay
