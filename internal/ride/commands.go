package ride

import (
	"github.com/example/ride-dispatch/internal/geo"
)

// Dispatch policy knobs. Radii are meters.
const (
	DefaultSearchRadiusMeters = 5000.0
	SearchRadiusStepMeters    = 2500.0
	MaxSearchRadiusMeters     = 15000.0
	MaxRetryAttempts          = 3
)

// RequestRide creates the ride and kicks off dispatch.
type RequestRide struct {
	RideID              string       `json:"ride_id"`
	UserID              string       `json:"user_id"`
	DepartureLocation   geo.Location `json:"departure_location"`
	DestinationLocation geo.Location `json:"destination_location"`
}

func (RequestRide) CommandType() string { return "request_ride" }

// FindDriver searches for the closest available driver around the pickup
// point. Retries re-enqueue it with a bumped attempt number and a wider
// radius.
type FindDriver struct {
	RideID                  string       `json:"ride_id"`
	DepartureLocation       geo.Location `json:"departure_location"`
	AttemptNumber           int          `json:"attempt_number"`
	MaxDriverDistanceMeters float64      `json:"max_driver_distance_meters"`
}

func (FindDriver) CommandType() string { return "find_driver" }

// NewFindDriver builds a first-attempt search at the default radius.
func NewFindDriver(rideID string, departure geo.Location) FindDriver {
	return FindDriver{
		RideID:                  rideID,
		DepartureLocation:       departure,
		AttemptNumber:           1,
		MaxDriverDistanceMeters: DefaultSearchRadiusMeters,
	}
}

// normalized fills the first-attempt defaults for payloads that omitted them.
func (c FindDriver) normalized() FindDriver {
	if c.AttemptNumber <= 0 {
		c.AttemptNumber = 1
	}
	if c.MaxDriverDistanceMeters <= 0 {
		c.MaxDriverDistanceMeters = DefaultSearchRadiusMeters
	}
	return c
}

// retry widens the search for the next attempt.
func (c FindDriver) retry() FindDriver {
	c.AttemptNumber++
	c.MaxDriverDistanceMeters += SearchRadiusStepMeters
	return c
}

// exhausted reports whether dispatch should give up instead of retrying.
func (c FindDriver) exhausted() bool {
	return c.AttemptNumber >= MaxRetryAttempts || c.MaxDriverDistanceMeters >= MaxSearchRadiusMeters
}

// CheckDriverResponseTimeout fires ~30s after an offer went out. It is a
// no-op unless the ride is still waiting on that driver.
type CheckDriverResponseTimeout struct {
	RideID                  string       `json:"ride_id"`
	DriverID                string       `json:"driver_id"`
	DepartureLocation       geo.Location `json:"departure_location"`
	AttemptNumber           int          `json:"attempt_number"`
	MaxDriverDistanceMeters float64      `json:"max_driver_distance_meters"`
}

func (CheckDriverResponseTimeout) CommandType() string { return "check_driver_response_timeout" }

// AcceptRide is a driver confirming an offered ride.
type AcceptRide struct {
	RideID   string `json:"ride_id"`
	DriverID string `json:"driver_id"`
}

func (AcceptRide) CommandType() string { return "accept_ride" }

// RejectRide is a driver declining an offered ride.
type RejectRide struct {
	RideID   string `json:"ride_id"`
	DriverID string `json:"driver_id"`
}

func (RejectRide) CommandType() string { return "reject_ride" }

// StartRide marks pickup done.
type StartRide struct {
	RideID   string `json:"ride_id"`
	DriverID string `json:"driver_id"`
}

func (StartRide) CommandType() string { return "start_ride" }

// CompleteRide ends the ride and frees the driver.
type CompleteRide struct {
	RideID   string `json:"ride_id"`
	DriverID string `json:"driver_id"`
}

func (CompleteRide) CommandType() string { return "complete_ride" }
