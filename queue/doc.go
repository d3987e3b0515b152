// Package queue holds the callback item model and the queue-facing
// operations of the engine: enqueueing with trigger evaluation, atomic
// batch extraction, and the stuck-item sweeper.
//
// An item lives in exactly one of two FIFO lists at any time: Pending
// (queued, unclaimed) or In-Flight (claimed by a dispatch cycle). The move
// between them is a single atomic operation on the Store, which is what
// makes concurrent extraction safe.
package queue
