package ride

import (
	"github.com/example/ride-dispatch/internal/geo"
)

// noDriverMessage is shown verbatim in the rider's UI.
const noDriverMessage = "No drivers available at the moment. Please try again later."

// DriverFoundEvent offers a ride to a driver.
type DriverFoundEvent struct {
	RideID              string       `json:"ride_id"`
	DriverID            string       `json:"driver_id"`
	DriverName          string       `json:"driver_name"`
	DepartureLocation   geo.Location `json:"departure_location"`
	DestinationLocation geo.Location `json:"destination_location"`
}

func (DriverFoundEvent) EventType() string { return "driver_found" }

// DriverRideRequestTimeoutEvent tells the driver's UI to drop a stale offer.
type DriverRideRequestTimeoutEvent struct {
	RideID   string `json:"ride_id"`
	DriverID string `json:"driver_id"`
}

func (DriverRideRequestTimeoutEvent) EventType() string { return "driver_ride_request_timeout" }

// RideAcceptedEvent tells the rider a driver is on the way.
type RideAcceptedEvent struct {
	RideID   string `json:"ride_id"`
	UserID   string `json:"user_id"`
	DriverID string `json:"driver_id"`
}

func (RideAcceptedEvent) EventType() string { return "ride_accepted" }

// RideStartedEvent goes to both rider and driver.
type RideStartedEvent struct {
	RideID   string `json:"ride_id"`
	UserID   string `json:"user_id"`
	DriverID string `json:"driver_id"`
}

func (RideStartedEvent) EventType() string { return "ride_started" }

// RideCompletedEvent goes to both rider and driver.
type RideCompletedEvent struct {
	RideID   string `json:"ride_id"`
	UserID   string `json:"user_id"`
	DriverID string `json:"driver_id"`
}

func (RideCompletedEvent) EventType() string { return "ride_completed" }

// NoDriverAvailableEvent tells the rider dispatch gave up.
type NoDriverAvailableEvent struct {
	RideID  string `json:"ride_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (NoDriverAvailableEvent) EventType() string { return "no_driver_available" }
