package driver

import (
	"context"

	"github.com/example/ride-dispatch/internal/geo"
)

// unboundedRadiusMeters stands in when a caller passes no distance limit.
const unboundedRadiusMeters = 50000.0

// candidateOverfetch pads the first index page so a handful of excluded or
// non-available candidates near the pickup don't force a second query.
const candidateOverfetch = 10

// ClosestDriverFinder resolves the nearest available driver for a pickup
// point. The geo index yields candidates closest-first; the driver row
// decides eligibility.
type ClosestDriverFinder struct {
	index geo.Index
	store Store
}

func NewClosestDriverFinder(index geo.Index, store Store) *ClosestDriverFinder {
	return &ClosestDriverFinder{index: index, store: store}
}

// FindClosestAvailable returns the nearest available driver within
// maxDistanceMeters, skipping excludeIDs. maxDistanceMeters <= 0 means no
// caller-imposed limit. A nil driver with nil error means no match.
func (f *ClosestDriverFinder) FindClosestAvailable(ctx context.Context, loc geo.Location, excludeIDs []string, maxDistanceMeters float64) (*Driver, error) {
	if maxDistanceMeters <= 0 {
		maxDistanceMeters = unboundedRadiusMeters
	}

	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	// The index ranks by distance only, so a page can be all busy drivers
	// while an available one sits just beyond it. Grow the page until a
	// match turns up or the index runs out of candidates in range.
	limit := candidateOverfetch + len(excludeIDs)
	seen := 0
	for {
		candidates, err := f.index.Nearby(ctx, loc, maxDistanceMeters, limit)
		if err != nil {
			return nil, err
		}

		if seen > len(candidates) {
			seen = len(candidates)
		}
		for _, c := range candidates[seen:] {
			if _, skip := excluded[c.DriverID]; skip {
				continue
			}
			d, err := f.store.Get(ctx, c.DriverID)
			if err == ErrNotFound {
				// Index entry outlived the row; skip it.
				continue
			}
			if err != nil {
				return nil, err
			}
			if d.Status == StatusAvailable {
				return &d, nil
			}
		}

		if len(candidates) < limit {
			// The radius is exhausted.
			return nil, nil
		}
		seen = len(candidates)
		limit *= 2
	}
}
