package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hookrelay/hookrelay"
	"github.com/hookrelay/hookrelay/dispatcher"
	"github.com/hookrelay/hookrelay/engine"
	"github.com/hookrelay/hookrelay/sender"
	"github.com/hookrelay/hookrelay/store/memory"
)

type captureSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *captureSender) Send(_ context.Context, d *sender.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, string(d.Payload))
	return nil
}

func (s *captureSender) deliveries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

func testConfig() hookrelay.Config {
	cfg := hookrelay.DefaultConfig()
	cfg.BatchSize = 3
	cfg.MaxDelay = time.Hour
	cfg.MinInterval = 0
	cfg.InterItemSpacing = 0
	return cfg
}

func newEngine(t *testing.T, snd sender.Sender, cfg hookrelay.Config, opts ...engine.Option) *engine.Engine {
	t.Helper()
	e, err := engine.New(memory.New(), snd, cfg, opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})
	return e
}

func TestNewValidation(t *testing.T) {
	snd := &captureSender{}
	st := memory.New()

	if _, err := engine.New(nil, snd, testConfig()); !errors.Is(err, hookrelay.ErrNoStore) {
		t.Fatalf("nil store: %v", err)
	}
	if _, err := engine.New(st, nil, testConfig()); !errors.Is(err, hookrelay.ErrNoSender) {
		t.Fatalf("nil sender: %v", err)
	}

	bad := testConfig()
	bad.BatchSize = 0
	if _, err := engine.New(st, snd, bad); !errors.Is(err, hookrelay.ErrInvalidConfig) {
		t.Fatalf("bad config: %v", err)
	}
}

// Five items with a batch size of three drain in two cycles, in arrival
// order, leaving both queue states empty and the counters consistent.
func TestEnqueueAndDrain(t *testing.T) {
	ctx := context.Background()
	snd := &captureSender{}
	e := newEngine(t, snd, testConfig())

	for i := 1; i <= 5; i++ {
		if _, err := e.Enqueue(ctx, []byte(fmt.Sprintf("cb-%d", i)), "https://rcv.example/hook"); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}

	res, err := e.RunCycle(ctx)
	if err != nil {
		t.Fatalf("first RunCycle: %v", err)
	}
	if res.Outcome != dispatcher.OutcomeCompleted || res.Sent != 3 {
		t.Fatalf("first cycle: %+v", res)
	}

	res, err = e.RunCycle(ctx)
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if res.Sent != 2 {
		t.Fatalf("second cycle: %+v", res)
	}

	want := []string{"cb-1", "cb-2", "cb-3", "cb-4", "cb-5"}
	got := snd.deliveries()
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("delivery order %v, want %v", got, want)
		}
	}

	status, err := e.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PendingCount != 0 || status.InFlightCount != 0 {
		t.Fatalf("queue not drained: %+v", status)
	}
	if status.Queued != 5 || status.Sent != 5 || status.Failed != 0 {
		t.Fatalf("counters: %+v", status)
	}
	if status.LockHeldBy != "" {
		t.Fatalf("lock leaked after drain: %q", status.LockHeldBy)
	}
	if status.LastDispatchAt.IsZero() {
		t.Fatal("last dispatch time not stamped")
	}
}

func TestEnqueueFiresTriggerAtBatchSize(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	triggers := make(chan struct{}, 10)
	e := newEngine(t, &captureSender{}, cfg, engine.WithTrigger(func() {
		select {
		case triggers <- struct{}{}:
		default:
		}
	}))

	// Two items: below batch size and below max delay, so no trigger yet.
	for i := 0; i < 2; i++ {
		if _, err := e.Enqueue(ctx, []byte("x"), "https://rcv.example/hook"); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	select {
	case <-triggers:
		t.Fatal("trigger fired below the batch threshold")
	default:
	}

	// The third item completes a batch.
	if _, err := e.Enqueue(ctx, []byte("x"), "https://rcv.example/hook"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-triggers:
	default:
		t.Fatal("expected a trigger at batch size")
	}
}

func TestSweepStuck(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	cfg := testConfig()
	cfg.StuckThreshold = 5 * time.Minute

	e, err := engine.New(st, &captureSender{}, cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer e.Close(context.Background())

	if _, err := e.Enqueue(ctx, []byte("stranded"), "https://rcv.example/hook"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Claim it as if a dispatcher died ten minutes ago.
	if _, err := st.MoveToInFlight(ctx, 1, time.Now().UTC().Add(-10*time.Minute)); err != nil {
		t.Fatalf("MoveToInFlight: %v", err)
	}

	n, err := e.SweepStuck(ctx)
	if err != nil {
		t.Fatalf("SweepStuck: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered %d items, want 1", n)
	}

	status, err := e.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PendingCount != 1 || status.InFlightCount != 0 {
		t.Fatalf("sweep left %+v", status)
	}
}

func TestForceReleaseLock(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	cfg := testConfig()

	// Simulate a dead holder with a long TTL.
	if _, err := st.AcquireLock(ctx, "disp_dead", time.Hour); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}

	e, err := engine.New(st, &captureSender{}, cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer e.Close(context.Background())

	if err := e.ForceReleaseLock(ctx); err != nil {
		t.Fatalf("ForceReleaseLock: %v", err)
	}
	status, err := e.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.LockHeldBy != "" {
		t.Fatalf("lock still held by %q", status.LockHeldBy)
	}
}

func TestRequeueAllInFlight(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e, err := engine.New(st, &captureSender{}, testConfig())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer e.Close(context.Background())

	for i := 0; i < 3; i++ {
		if _, err := e.Enqueue(ctx, []byte("x"), "https://rcv.example/hook"); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if _, err := st.MoveToInFlight(ctx, 3, time.Now().UTC()); err != nil {
		t.Fatalf("MoveToInFlight: %v", err)
	}

	n, err := e.RequeueAllInFlight(ctx)
	if err != nil {
		t.Fatalf("RequeueAllInFlight: %v", err)
	}
	if n != 3 {
		t.Fatalf("requeued %d, want 3", n)
	}
	status, _ := e.Status(ctx)
	if status.PendingCount != 3 || status.InFlightCount != 0 {
		t.Fatalf("after requeue: %+v", status)
	}
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e, err := engine.New(st, &captureSender{}, testConfig())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer e.Close(context.Background())

	for i := 0; i < 4; i++ {
		if _, err := e.Enqueue(ctx, []byte("x"), "https://rcv.example/hook"); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if _, err := st.AcquireLock(ctx, "disp_other", time.Hour); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}

	if err := e.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}

	status, err := e.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PendingCount != 0 || status.InFlightCount != 0 || status.LockHeldBy != "" {
		t.Fatalf("state survived reset: %+v", status)
	}
	if !status.LastDispatchAt.IsZero() {
		t.Fatalf("rate marker survived reset: %v", status.LastDispatchAt)
	}
}
