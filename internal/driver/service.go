package driver

import (
	"context"
	"log/slog"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/observability"
)

// Service keeps the durable driver row and the geospatial index in step.
// The row in postgres is the source of truth; the index is a lookup
// accelerator and tolerates being slightly behind.
type Service struct {
	store  Store
	index  geo.Index
	logger *slog.Logger
}

func NewService(store Store, index geo.Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, index: index, logger: logger}
}

func (s *Service) Register(ctx context.Context, d Driver) (Driver, error) {
	created, err := s.store.Create(ctx, d)
	if err != nil {
		return Driver{}, err
	}
	if created.Status != StatusOffline {
		s.syncIndex(ctx, created)
	}
	if created.Status == StatusAvailable {
		observability.DriversOnline.Inc()
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (Driver, error) {
	prev, err := s.store.Get(ctx, id)
	if err != nil {
		return Driver{}, err
	}
	d, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return Driver{}, err
	}
	s.syncIndex(ctx, d)
	// The gauge counts available drivers, so only transitions into or out
	// of Available move it.
	if prev.Status != d.Status {
		if d.Status == StatusAvailable {
			observability.DriversOnline.Inc()
		} else if prev.Status == StatusAvailable {
			observability.DriversOnline.Dec()
		}
	}
	return d, nil
}

func (s *Service) UpdateLocation(ctx context.Context, id string, loc geo.Location) (Driver, error) {
	d, err := s.store.UpdateLocation(ctx, id, loc)
	if err != nil {
		return Driver{}, err
	}
	s.syncIndex(ctx, d)
	return d, nil
}

// syncIndex is best effort: a failed index write degrades match quality
// until the next location ping, it does not fail the command.
func (s *Service) syncIndex(ctx context.Context, d Driver) {
	var err error
	if d.Status == StatusOffline {
		err = s.index.Remove(ctx, d.ID)
	} else {
		err = s.index.Upsert(ctx, d.ID, d.CurrentLocation)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "geo index out of sync",
			"driver_id", d.ID, "status", string(d.Status), "error", err)
	}
}
