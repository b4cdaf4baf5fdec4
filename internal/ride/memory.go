package ride

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Service for tests and local runs. It
// enforces the same single-assignment rule as the postgres store.
type MemoryStore struct {
	mu    sync.Mutex
	rides map[string]Ride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]Ride)}
}

func (s *MemoryStore) Create(ctx context.Context, r Ride) (Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides[r.ID] = r
	return r, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return Ride{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) MarkDispatching(ctx context.Context, id string) (Ride, error) {
	return s.transition(id, StateDispatching)
}

func (s *MemoryStore) ResetToRequested(ctx context.Context, id string) (Ride, error) {
	return s.transition(id, StateRequested)
}

func (s *MemoryStore) Start(ctx context.Context, id string) (Ride, error) {
	return s.transition(id, StateInProgress)
}

func (s *MemoryStore) Cancel(ctx context.Context, id string) (Ride, error) {
	return s.transition(id, StateCancelled)
}

func (s *MemoryStore) Complete(ctx context.Context, id string) (Ride, error) {
	return s.transition(id, StateCompleted)
}

func (s *MemoryStore) AssignDriver(ctx context.Context, id, driverID string) (Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return Ride{}, ErrNotFound
	}
	if r.DriverID != "" {
		return Ride{}, &AlreadyAssignedError{RideID: id, AssignedDriverID: r.DriverID, AttemptedDriverID: driverID}
	}
	updated := r.WithDriver(driverID, StateDriverAccepted)
	s.rides[id] = updated
	return updated, nil
}

func (s *MemoryStore) transition(id string, state State) (Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return Ride{}, ErrNotFound
	}
	updated := r.WithState(state)
	s.rides[id] = updated
	return updated, nil
}
