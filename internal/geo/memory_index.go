package geo

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index for local runs and tests.
type MemoryIndex struct {
	mu        sync.RWMutex
	positions map[string]Location
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{positions: make(map[string]Location)}
}

func (m *MemoryIndex) Upsert(_ context.Context, driverID string, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[driverID] = loc
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, driverID)
	return nil
}

func (m *MemoryIndex) Nearby(_ context.Context, loc Location, radiusMeters float64, limit int) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Candidate, 0, len(m.positions))
	for id, pos := range m.positions {
		d := Haversine(loc, pos)
		if d > radiusMeters {
			continue
		}
		out = append(out, Candidate{DriverID: id, Location: pos, DistanceMeters: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].DriverID < out[j].DriverID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
