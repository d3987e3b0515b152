package queue_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hookrelay/hookrelay/queue"
	"github.com/hookrelay/hookrelay/store/memory"
)

func TestEnqueueAppendsAndCounts(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	acc := queue.NewAccessor(st, 10, 0)

	itemID, err := acc.Enqueue(ctx, []byte(`{"task":"done"}`), "https://example.com/hook")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if itemID.IsNil() {
		t.Fatal("expected a real item ID")
	}

	pending, inFlight, err := acc.Depths(ctx)
	if err != nil {
		t.Fatalf("Depths: %v", err)
	}
	if pending != 1 || inFlight != 0 {
		t.Fatalf("expected 1 pending / 0 in-flight, got %d / %d", pending, inFlight)
	}

	stats, err := acc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Queued != 1 {
		t.Fatalf("expected queued=1, got %d", stats.Queued)
	}
}

func TestTriggerOnBatchSize(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	var triggers atomic.Int32
	acc := queue.NewAccessor(st, 3, 0,
		queue.WithTrigger(func() { triggers.Add(1) }),
	)

	for i := range 2 {
		if _, err := acc.Enqueue(ctx, []byte("p"), "https://example.com"); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	if n := triggers.Load(); n != 0 {
		t.Fatalf("no trigger expected below batch size, got %d", n)
	}

	if _, err := acc.Enqueue(ctx, []byte("p"), "https://example.com"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if n := triggers.Load(); n != 1 {
		t.Fatalf("expected 1 trigger at batch size, got %d", n)
	}
}

func TestTriggerOnMaxDelay(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	var triggers atomic.Int32
	acc := queue.NewAccessor(st, 100, 30*time.Millisecond,
		queue.WithTrigger(func() { triggers.Add(1) }),
	)

	if _, err := acc.Enqueue(ctx, []byte("p"), "https://example.com"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if n := triggers.Load(); n != 0 {
		t.Fatalf("fresh item should not trigger, got %d", n)
	}

	time.Sleep(50 * time.Millisecond)

	if _, err := acc.Enqueue(ctx, []byte("p"), "https://example.com"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if n := triggers.Load(); n != 1 {
		t.Fatalf("expected age trigger, got %d", n)
	}
}

func TestExtractBatchFIFO(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	acc := queue.NewAccessor(st, 10, 0)

	var order []string
	for range 5 {
		itemID, err := acc.Enqueue(ctx, []byte("p"), "https://example.com")
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		order = append(order, itemID.String())
	}

	batch, err := acc.ExtractBatch(ctx, 5)
	if err != nil {
		t.Fatalf("ExtractBatch: %v", err)
	}
	if len(batch) != 5 {
		t.Fatalf("expected 5 items, got %d", len(batch))
	}
	for i, item := range batch {
		if item.ID.String() != order[i] {
			t.Fatalf("position %d: expected %s, got %s", i, order[i], item.ID)
		}
		if item.ClaimedAt == nil {
			t.Fatalf("position %d: expected ClaimedAt to be stamped", i)
		}
	}

	pending, inFlight, err := acc.Depths(ctx)
	if err != nil {
		t.Fatalf("Depths: %v", err)
	}
	if pending != 0 || inFlight != 5 {
		t.Fatalf("expected 0 pending / 5 in-flight, got %d / %d", pending, inFlight)
	}
}

func TestExtractBatchEmptyIsNotError(t *testing.T) {
	acc := queue.NewAccessor(memory.New(), 10, 0)

	batch, err := acc.ExtractBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("ExtractBatch on empty queue: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty batch, got %d items", len(batch))
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	acc := queue.NewAccessor(st, 10, 0)

	for range 3 {
		if _, err := acc.Enqueue(ctx, []byte("p"), "https://example.com"); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if _, err := acc.ExtractBatch(ctx, 1); err != nil {
		t.Fatalf("ExtractBatch: %v", err)
	}

	if err := acc.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	pending, inFlight, err := acc.Depths(ctx)
	if err != nil {
		t.Fatalf("Depths: %v", err)
	}
	if pending != 0 || inFlight != 0 {
		t.Fatalf("expected empty queue after reset, got %d / %d", pending, inFlight)
	}
	stats, err := acc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Queued != 0 {
		t.Fatalf("expected counters cleared, got queued=%d", stats.Queued)
	}
}
