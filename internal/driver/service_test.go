package driver

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/observability"
)

func gaugeValue() float64 {
	return testutil.ToFloat64(observability.DriversOnline)
}

func TestAvailabilityGaugeSurvivesBusyCycles(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore(), geo.NewMemoryIndex(), nil)

	base := gaugeValue()
	if _, err := s.Register(ctx, Driver{
		ID: "d1", Name: "Driver d1", Email: "d1@example.com",
		CurrentLocation: trafalgar, Status: StatusOffline, UpdatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	if got := gaugeValue(); got != base {
		t.Fatalf("offline registration moved the gauge: %v -> %v", base, got)
	}

	if _, err := s.UpdateStatus(ctx, "d1", StatusAvailable); err != nil {
		t.Fatal(err)
	}
	if got := gaugeValue(); got != base+1 {
		t.Fatalf("gauge after going available = %v, want %v", got, base+1)
	}

	// A full accept/complete cycle must leave the gauge where it started.
	if _, err := s.UpdateStatus(ctx, "d1", StatusBusy); err != nil {
		t.Fatal(err)
	}
	if got := gaugeValue(); got != base {
		t.Fatalf("gauge after going busy = %v, want %v", got, base)
	}
	if _, err := s.UpdateStatus(ctx, "d1", StatusAvailable); err != nil {
		t.Fatal(err)
	}
	if got := gaugeValue(); got != base+1 {
		t.Fatalf("gauge after second available = %v, want %v", got, base+1)
	}

	// Repeating the current status is a no-op.
	if _, err := s.UpdateStatus(ctx, "d1", StatusAvailable); err != nil {
		t.Fatal(err)
	}
	if got := gaugeValue(); got != base+1 {
		t.Fatalf("gauge after redundant update = %v, want %v", got, base+1)
	}

	if _, err := s.UpdateStatus(ctx, "d1", StatusOffline); err != nil {
		t.Fatal(err)
	}
	if got := gaugeValue(); got != base {
		t.Fatalf("gauge after going offline = %v, want %v", got, base)
	}
}
