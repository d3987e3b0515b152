package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sweeper recovers items stranded in In-Flight by crashed dispatch cycles.
// It runs on its own periodic trigger, independent of dispatch cycles, and
// needs no scheduler lock: staleness is safe to compute concurrently from
// multiple processes, and requeueing an already-recovered item is a no-op
// once it has left In-Flight.
type Sweeper struct {
	store     Store
	threshold time.Duration
	logger    *slog.Logger
}

// NewSweeper creates a Sweeper. threshold should be long enough that no
// legitimate in-progress send is still in flight, and short enough to
// recover promptly from crashes.
func NewSweeper(store Store, threshold time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, threshold: threshold, logger: logger}
}

// Sweep requeues every in-flight item claimed longer ago than the
// staleness threshold, preserving attempt counts so retry limits still
// apply. Returns the number of items recovered.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.RequeueStale(ctx, s.threshold)
	if err != nil {
		return 0, fmt.Errorf("hookrelay/queue: sweep stuck: %w", err)
	}

	// Repeated recovery of the same item suggests a chronic send-path
	// problem, so each recovery is worth a warning.
	for _, itemID := range ids {
		s.logger.Warn("recovered stuck in-flight item",
			slog.String("item_id", itemID.String()),
			slog.Duration("threshold", s.threshold),
		)
	}
	return len(ids), nil
}
