package driver

import (
	"errors"
	"time"

	"github.com/example/ride-dispatch/internal/geo"
)

// ErrNotFound is returned when a driver id has no row.
var ErrNotFound = errors.New("driver not found")

// Status is the driver availability state.
type Status string

const (
	// StatusAvailable: online and eligible for dispatch.
	StatusAvailable Status = "available"
	// StatusBusy: online but on a ride.
	StatusBusy Status = "busy"
	// StatusOffline: not accepting work; dropped from the geo index.
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Driver is an immutable snapshot of one driver.
type Driver struct {
	ID              string
	Name            string
	Email           string
	CurrentLocation geo.Location
	Status          Status
	UpdatedAt       time.Time
}

// WithStatus returns a copy with the status changed.
func (d Driver) WithStatus(status Status) Driver {
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	return d
}

// WithLocation returns a copy with a fresh position.
func (d Driver) WithLocation(loc geo.Location) Driver {
	d.CurrentLocation = loc
	d.UpdatedAt = time.Now().UTC()
	return d
}
