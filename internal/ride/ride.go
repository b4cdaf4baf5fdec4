package ride

import (
	"time"

	"github.com/example/ride-dispatch/internal/geo"
)

// State is the ride lifecycle state.
type State string

const (
	// StateRequested: created by the user, no driver assigned yet.
	StateRequested State = "requested"
	// StateDispatching: a worker is actively offering the ride to a driver.
	StateDispatching State = "dispatching"
	// StateDriverAccepted: the driver confirmed and is heading to pickup.
	StateDriverAccepted State = "driver_accepted"
	// StateInProgress: pickup done, ride underway.
	StateInProgress State = "in_progress"
	// StateCompleted: ride finished successfully.
	StateCompleted State = "completed"
	// StateCancelled: no driver found or the user gave up.
	StateCancelled State = "cancelled"
)

// Ride is an immutable snapshot of one ride. Transitions produce fresh
// values via the With methods; DriverID is set exactly once.
type Ride struct {
	ID                  string
	UserID              string
	DepartureLocation   geo.Location
	DestinationLocation geo.Location
	DriverID            string
	State               State
	CreatedAt           time.Time
}

// WithState returns a copy in the given state.
func (r Ride) WithState(state State) Ride {
	r.State = state
	return r
}

// WithDriver returns a copy with the driver assigned and the state advanced.
func (r Ride) WithDriver(driverID string, state State) Ride {
	r.DriverID = driverID
	r.State = state
	return r
}
