package driver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/geo"
)

var trafalgar = geo.Location{Lat: 51.5080, Lon: -0.1281}

func seedDriver(t *testing.T, store *MemoryStore, index *geo.MemoryIndex, id string, loc geo.Location, status Status) {
	t.Helper()
	ctx := context.Background()
	_, err := store.Create(ctx, Driver{
		ID: id, Name: "Driver " + id, Email: id + "@example.com",
		CurrentLocation: loc, Status: status, UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusOffline {
		if err := index.Upsert(ctx, id, loc); err != nil {
			t.Fatal(err)
		}
	}
}

// offset returns a point roughly meters north of loc.
func offset(loc geo.Location, meters float64) geo.Location {
	return geo.Location{Lat: loc.Lat + meters/111320.0, Lon: loc.Lon}
}

func TestFinderPicksClosestAvailable(t *testing.T) {
	store := NewMemoryStore()
	index := geo.NewMemoryIndex()
	seedDriver(t, store, index, "far", offset(trafalgar, 3000), StatusAvailable)
	seedDriver(t, store, index, "near", offset(trafalgar, 500), StatusAvailable)

	f := NewClosestDriverFinder(index, store)
	d, err := f.FindClosestAvailable(context.Background(), trafalgar, nil, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.ID != "near" {
		t.Fatalf("expected nearest driver, got %+v", d)
	}
}

func TestFinderSkipsBusyAndExcluded(t *testing.T) {
	store := NewMemoryStore()
	index := geo.NewMemoryIndex()
	seedDriver(t, store, index, "busy", offset(trafalgar, 200), StatusBusy)
	seedDriver(t, store, index, "rejected", offset(trafalgar, 400), StatusAvailable)
	seedDriver(t, store, index, "eligible", offset(trafalgar, 900), StatusAvailable)

	f := NewClosestDriverFinder(index, store)
	d, err := f.FindClosestAvailable(context.Background(), trafalgar, []string{"rejected"}, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.ID != "eligible" {
		t.Fatalf("expected the non-excluded available driver, got %+v", d)
	}
}

func TestFinderLooksPastACrowdOfBusyDrivers(t *testing.T) {
	store := NewMemoryStore()
	index := geo.NewMemoryIndex()
	// More busy drivers near the pickup than one index page holds.
	for i := 0; i < 11; i++ {
		id := fmt.Sprintf("busy-%d", i)
		seedDriver(t, store, index, id, offset(trafalgar, 100+float64(i)*10), StatusBusy)
	}
	seedDriver(t, store, index, "free", offset(trafalgar, 1100), StatusAvailable)

	f := NewClosestDriverFinder(index, store)
	d, err := f.FindClosestAvailable(context.Background(), trafalgar, nil, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.ID != "free" {
		t.Fatalf("expected the available driver beyond the busy crowd, got %+v", d)
	}
}

func TestFinderRespectsRadius(t *testing.T) {
	store := NewMemoryStore()
	index := geo.NewMemoryIndex()
	seedDriver(t, store, index, "outside", offset(trafalgar, 8000), StatusAvailable)

	f := NewClosestDriverFinder(index, store)
	d, err := f.FindClosestAvailable(context.Background(), trafalgar, nil, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Fatalf("driver outside the radius must not match, got %+v", d)
	}

	// Unbounded search still finds them.
	d, err = f.FindClosestAvailable(context.Background(), trafalgar, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.ID != "outside" {
		t.Fatalf("expected match without a radius cap, got %+v", d)
	}
}

func TestFinderToleratesStaleIndexEntries(t *testing.T) {
	store := NewMemoryStore()
	index := geo.NewMemoryIndex()
	// Index entry with no backing row.
	if err := index.Upsert(context.Background(), "ghost", offset(trafalgar, 100)); err != nil {
		t.Fatal(err)
	}
	seedDriver(t, store, index, "real", offset(trafalgar, 700), StatusAvailable)

	f := NewClosestDriverFinder(index, store)
	d, err := f.FindClosestAvailable(context.Background(), trafalgar, nil, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.ID != "real" {
		t.Fatalf("stale index entries must be skipped, got %+v", d)
	}
}

func TestFinderReturnsNilWhenEmpty(t *testing.T) {
	f := NewClosestDriverFinder(geo.NewMemoryIndex(), NewMemoryStore())
	d, err := f.FindClosestAvailable(context.Background(), trafalgar, nil, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Fatalf("expected no match, got %+v", d)
	}
}
