package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/ids"
)

// MemoryStore is an in-process Store for local runs and tests. It mirrors
// the Postgres semantics: batch mutations stay invisible until Commit,
// claimed entries are skipped by concurrent batches, and eligibility follows
// the same 2^attempts backoff rule.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
	locked  map[string]bool
	signal  chan struct{}

	// Now is the clock used for eligibility checks; tests override it.
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		locked:  make(map[string]bool),
		signal:  make(chan struct{}, 1),
		Now:     time.Now,
	}
}

func (m *MemoryStore) Enqueue(ctx context.Context, cmd Command) (string, error) {
	return m.insert(cmd, 0)
}

func (m *MemoryStore) EnqueueDelayed(ctx context.Context, cmd Command, delay time.Duration) (string, error) {
	return m.insert(cmd, delayAttempts(delay))
}

func (m *MemoryStore) insert(cmd Command, attempts int) (string, error) {
	payload, err := EncodePayload(cmd)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	now := m.Now()
	e := &Entry{
		ID:        ids.New(),
		Status:    StatusPending,
		Type:      cmd.CommandType(),
		Payload:   payload,
		Attempts:  attempts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.entries[e.ID] = e
	m.order = append(m.order, e.ID)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return e.ID, nil
}

func (m *MemoryStore) BeginBatch(ctx context.Context) (Batch, error) {
	return &memBatch{store: m, staged: make(map[string]*Entry)}, nil
}

func (m *MemoryStore) AwaitSignal(ctx context.Context, timeout time.Duration) (bool, error) {
	select {
	case <-m.signal:
		return true, nil
	case <-time.After(timeout):
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Get returns a copy of the entry, for inspection in tests.
func (m *MemoryStore) Get(id string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

type memBatch struct {
	store   *MemoryStore
	claimed []string
	staged  map[string]*Entry
	done    bool
}

func (b *memBatch) Claim(ctx context.Context, typeFilter string, limit int) ([]Entry, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	now := b.store.Now()

	candidates := make([]*Entry, 0, len(b.store.order))
	for _, id := range b.store.order {
		e := b.store.entries[id]
		if e.Status != StatusPending || b.store.locked[id] {
			continue
		}
		if typeFilter != TypeAny && typeFilter != "" && e.Type != typeFilter {
			continue
		}
		if e.EligibleAt().After(now) {
			continue
		}
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]Entry, 0, len(candidates))
	for _, e := range candidates {
		b.store.locked[e.ID] = true
		b.claimed = append(b.claimed, e.ID)
		copied := *e
		b.staged[e.ID] = &copied
		out = append(out, copied)
	}
	return out, nil
}

func (b *memBatch) UpdateStatus(ctx context.Context, id string, status Status, lastError string) error {
	staged, ok := b.staged[id]
	if !ok {
		b.store.mu.Lock()
		e, exists := b.store.entries[id]
		if !exists {
			b.store.mu.Unlock()
			return fmt.Errorf("entry %s not found", id)
		}
		copied := *e
		staged = &copied
		b.staged[id] = staged
		b.store.mu.Unlock()
	}
	staged.Status = status
	if lastError != "" {
		staged.Attempts++
		staged.LastError = lastError
	} else {
		staged.LastError = ""
	}
	staged.UpdatedAt = b.store.Now()
	return nil
}

func (b *memBatch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.done {
		return nil
	}
	for id, staged := range b.staged {
		copied := *staged
		b.store.entries[id] = &copied
	}
	b.release()
	return nil
}

func (b *memBatch) Rollback() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.done {
		return nil
	}
	b.release()
	return nil
}

func (b *memBatch) release() {
	for _, id := range b.claimed {
		delete(b.store.locked, id)
	}
	b.done = true
}
