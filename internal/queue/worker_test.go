package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newWorkerUnderTest(store Store, reg *Registry) *Worker {
	return &Worker{Store: store, Handler: reg, BatchSize: 5, MaxAttempts: 5}
}

func TestWorkerCompletesCommand(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newClockedStore(clock)

	handled := 0
	reg := NewRegistry()
	reg.Register(pingCommand{}, HandlerFunc(func(ctx context.Context, cmd Command) error {
		handled++
		return nil
	}))

	id, _ := store.Enqueue(ctx, pingCommand{Note: "ok"})

	w := newWorkerUnderTest(store, reg)
	n, err := w.Process(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || handled != 1 {
		t.Fatalf("expected 1 processed, got n=%d handled=%d", n, handled)
	}
	e, _ := store.Get(id)
	if e.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", e.Status)
	}
}

func TestWorkerFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newClockedStore(clock)

	reg := NewRegistry()
	reg.Register(pingCommand{}, HandlerFunc(func(ctx context.Context, cmd Command) error {
		return errors.New("downstream unavailable")
	}))
	reg.Register(pongCommand{}, HandlerFunc(func(ctx context.Context, cmd Command) error {
		return nil
	}))

	badID, _ := store.Enqueue(ctx, pingCommand{})
	goodID, _ := store.Enqueue(ctx, pongCommand{})

	w := newWorkerUnderTest(store, reg)
	n, err := w.Process(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 completion, got %d", n)
	}

	bad, _ := store.Get(badID)
	if bad.Status != StatusPending || bad.Attempts != 1 || bad.LastError == "" {
		t.Fatalf("failed entry should return to pending with attempts=1: %+v", bad)
	}
	good, _ := store.Get(goodID)
	if good.Status != StatusCompleted {
		t.Fatalf("second entry should complete, got %s", good.Status)
	}
}

func TestWorkerFailsOnFifthFailureNeverEarlier(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newClockedStore(clock)

	reg := NewRegistry()
	reg.Register(pingCommand{}, HandlerFunc(func(ctx context.Context, cmd Command) error {
		return errors.New("always failing")
	}))

	id, _ := store.Enqueue(ctx, pingCommand{})
	w := newWorkerUnderTest(store, reg)

	for failure := 1; failure <= 5; failure++ {
		// Skip past the backoff so the row is claimable again.
		clock.Advance(backoffDelay(failure) + time.Second)
		if _, err := w.Process(ctx); err != nil {
			t.Fatal(err)
		}
		e, _ := store.Get(id)
		if e.Attempts != failure {
			t.Fatalf("after failure %d expected attempts=%d, got %d", failure, failure, e.Attempts)
		}
		wantStatus := StatusPending
		if failure == 5 {
			wantStatus = StatusFailed
		}
		if e.Status != wantStatus {
			t.Fatalf("after failure %d expected %s, got %s", failure, wantStatus, e.Status)
		}
	}

	// Terminal: never claimed again.
	clock.Advance(time.Hour)
	if got := claimIDs(t, store, TypeAny, 5); len(got) != 0 {
		t.Fatalf("failed entry must not be reclaimed: %v", got)
	}
}

func TestWorkerUnknownTypeCompletes(t *testing.T) {
	ctx := context.Background()
	store := newClockedStore(newFakeClock())

	id, _ := store.Enqueue(ctx, pongCommand{Target: "nobody"})

	w := newWorkerUnderTest(store, NewRegistry())
	n, err := w.Process(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("unknown type should complete as a no-op, got %d", n)
	}
	e, _ := store.Get(id)
	if e.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", e.Status)
	}
}

type brokenBatchStore struct {
	*MemoryStore
	claimErr error
}

func (s *brokenBatchStore) BeginBatch(ctx context.Context) (Batch, error) {
	inner, err := s.MemoryStore.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	return &brokenBatch{Batch: inner, claimErr: s.claimErr}, nil
}

type brokenBatch struct {
	Batch
	claimErr error
}

func (b *brokenBatch) Claim(ctx context.Context, typeFilter string, limit int) ([]Entry, error) {
	return nil, b.claimErr
}

func TestWorkerClaimErrorPropagatesAndLeavesWorkClaimable(t *testing.T) {
	ctx := context.Background()
	mem := newClockedStore(newFakeClock())
	_, _ = mem.Enqueue(ctx, pingCommand{})

	boom := errors.New("connection reset")
	store := &brokenBatchStore{MemoryStore: mem, claimErr: boom}

	w := newWorkerUnderTest(store, NewRegistry())
	if _, err := w.Process(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected claim error to propagate, got %v", err)
	}

	// The batch was rolled back; another worker can still pick the row up.
	if got := claimIDs(t, mem, TypeAny, 5); len(got) != 1 {
		t.Fatalf("entry should remain claimable, got %v", got)
	}
}

func TestWorkerRespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	store := newClockedStore(newFakeClock())
	reg := NewRegistry()
	reg.Register(pingCommand{}, HandlerFunc(func(ctx context.Context, cmd Command) error { return nil }))

	for i := 0; i < 4; i++ {
		_, _ = store.Enqueue(ctx, pingCommand{Count: i})
	}

	w := &Worker{Store: store, Handler: reg, BatchSize: 3, MaxAttempts: 5}
	n, err := w.Process(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 processed in first cycle, got %d", n)
	}
	n, err = w.Process(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 processed in second cycle, got %d", n)
	}
}
