package driver

import (
	"context"
	"sync"

	"github.com/example/ride-dispatch/internal/geo"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	drivers map[string]Driver
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[string]Driver)}
}

func (s *MemoryStore) Create(ctx context.Context, d Driver) (Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.ID] = d
	return d, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return Driver{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) (Driver, error) {
	return s.mutate(id, func(d Driver) Driver { return d.WithStatus(status) })
}

func (s *MemoryStore) UpdateLocation(ctx context.Context, id string, loc geo.Location) (Driver, error) {
	return s.mutate(id, func(d Driver) Driver { return d.WithLocation(loc) })
}

func (s *MemoryStore) mutate(id string, apply func(Driver) Driver) (Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return Driver{}, ErrNotFound
	}
	updated := apply(d)
	s.drivers[id] = updated
	return updated, nil
}
