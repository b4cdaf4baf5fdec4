package ride

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ride-dispatch/internal/driver"
	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/queue"
)

// driverResponseTimeout is how long a driver gets to answer an offer before
// the delayed timeout command puts the ride back on the market.
const driverResponseTimeout = 30 * time.Second

// DriverFinder locates the closest available driver. A nil driver with a
// nil error means nobody eligible is in range.
type DriverFinder interface {
	FindClosestAvailable(ctx context.Context, loc geo.Location, excludeIDs []string, maxDistanceMeters float64) (*driver.Driver, error)
}

// DriverStatusUpdater flips a driver between available and busy as rides
// are accepted and completed.
type DriverStatusUpdater interface {
	UpdateStatus(ctx context.Context, driverID string, status driver.Status) (driver.Driver, error)
}

// RejectionTracker is the per-ride memory of drivers who declined or
// timed out.
type RejectionTracker interface {
	Add(ctx context.Context, rideID, driverID string) error
	RejectedDriverIDs(ctx context.Context, rideID string) ([]string, error)
}

// FareCharger settles payment for a completed ride.
type FareCharger interface {
	ChargeFare(ctx context.Context, r Ride) error
}

// Handlers wires the ride state machine into the command queue. Each
// handler is one transition; follow-up work goes back through the queue
// rather than being done inline.
type Handlers struct {
	Rides     Service
	Drivers   DriverStatusUpdater
	Finder    DriverFinder
	Tracker   RejectionTracker
	Publisher events.Publisher
	Queue     queue.Enqueuer
	Charger   FareCharger // optional; fare settlement is best effort
	Logger    *slog.Logger
}

// Register binds every ride command to its handler.
func (h *Handlers) Register(reg *queue.Registry) {
	reg.Register(RequestRide{}, queue.HandlerFunc(h.handleRequestRide))
	reg.Register(FindDriver{}, queue.HandlerFunc(h.handleFindDriver))
	reg.Register(CheckDriverResponseTimeout{}, queue.HandlerFunc(h.handleCheckDriverResponseTimeout))
	reg.Register(AcceptRide{}, queue.HandlerFunc(h.handleAcceptRide))
	reg.Register(RejectRide{}, queue.HandlerFunc(h.handleRejectRide))
	reg.Register(StartRide{}, queue.HandlerFunc(h.handleStartRide))
	reg.Register(CompleteRide{}, queue.HandlerFunc(h.handleCompleteRide))
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handlers) handleRequestRide(ctx context.Context, cmd queue.Command) error {
	c := cmd.(RequestRide)

	r, err := h.Rides.Create(ctx, Ride{
		ID:                  c.RideID,
		UserID:              c.UserID,
		DepartureLocation:   c.DepartureLocation,
		DestinationLocation: c.DestinationLocation,
		State:               StateRequested,
		CreatedAt:           time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	_, err = h.Queue.Enqueue(ctx, NewFindDriver(r.ID, r.DepartureLocation))
	return err
}

func (h *Handlers) handleFindDriver(ctx context.Context, cmd queue.Command) error {
	c := cmd.(FindDriver).normalized()

	r, err := h.Rides.Get(ctx, c.RideID)
	if err != nil {
		return err
	}

	excluded, err := h.Tracker.RejectedDriverIDs(ctx, c.RideID)
	if err != nil {
		return err
	}

	d, err := h.Finder.FindClosestAvailable(ctx, c.DepartureLocation, excluded, c.MaxDriverDistanceMeters)
	if err != nil {
		return err
	}

	if d == nil {
		if c.exhausted() {
			return h.giveUp(ctx, r)
		}
		_, err := h.Queue.Enqueue(ctx, c.retry())
		return err
	}

	if _, err := h.Rides.MarkDispatching(ctx, c.RideID); err != nil {
		return err
	}

	offer := DriverFoundEvent{
		RideID:              c.RideID,
		DriverID:            d.ID,
		DriverName:          d.Name,
		DepartureLocation:   r.DepartureLocation,
		DestinationLocation: r.DestinationLocation,
	}
	if err := h.Publisher.Publish(ctx, events.DriverChannel(d.ID), offer); err != nil {
		return err
	}

	_, err = h.Queue.EnqueueDelayed(ctx, CheckDriverResponseTimeout{
		RideID:                  c.RideID,
		DriverID:                d.ID,
		DepartureLocation:       c.DepartureLocation,
		AttemptNumber:           c.AttemptNumber,
		MaxDriverDistanceMeters: c.MaxDriverDistanceMeters,
	}, driverResponseTimeout)
	return err
}

func (h *Handlers) handleCheckDriverResponseTimeout(ctx context.Context, cmd queue.Command) error {
	c := cmd.(CheckDriverResponseTimeout)

	r, err := h.Rides.Get(ctx, c.RideID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// Any other state means the driver responded before the deadline.
	if r.State != StateDispatching {
		return nil
	}

	if _, err := h.Rides.ResetToRequested(ctx, c.RideID); err != nil {
		return err
	}
	timeout := DriverRideRequestTimeoutEvent{RideID: c.RideID, DriverID: c.DriverID}
	if err := h.Publisher.Publish(ctx, events.DriverChannel(c.DriverID), timeout); err != nil {
		return err
	}
	if err := h.Tracker.Add(ctx, c.RideID, c.DriverID); err != nil {
		return err
	}

	if c.AttemptNumber < MaxRetryAttempts {
		next := FindDriver{
			RideID:                  c.RideID,
			DepartureLocation:       c.DepartureLocation,
			AttemptNumber:           c.AttemptNumber,
			MaxDriverDistanceMeters: c.MaxDriverDistanceMeters,
		}.normalized().retry()
		_, err := h.Queue.Enqueue(ctx, next)
		return err
	}

	return h.giveUp(ctx, r)
}

func (h *Handlers) handleAcceptRide(ctx context.Context, cmd queue.Command) error {
	c := cmd.(AcceptRide)

	r, err := h.Rides.AssignDriver(ctx, c.RideID, c.DriverID)
	var conflict *AlreadyAssignedError
	if errors.As(err, &conflict) {
		// Another driver won the race; this driver stays available.
		h.logger().InfoContext(ctx, "accept lost assignment race",
			"ride_id", c.RideID, "driver_id", c.DriverID)
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := h.Drivers.UpdateStatus(ctx, c.DriverID, driver.StatusBusy); err != nil {
		return err
	}

	accepted := RideAcceptedEvent{RideID: c.RideID, UserID: r.UserID, DriverID: c.DriverID}
	return h.Publisher.Publish(ctx, events.UserChannel(r.UserID), accepted)
}

func (h *Handlers) handleRejectRide(ctx context.Context, cmd queue.Command) error {
	c := cmd.(RejectRide)

	r, err := h.Rides.Get(ctx, c.RideID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.Tracker.Add(ctx, c.RideID, c.DriverID); err != nil {
		return err
	}
	if _, err := h.Rides.ResetToRequested(ctx, c.RideID); err != nil {
		return err
	}

	// Fresh search from attempt 1; the rejection set keeps this driver out.
	_, err = h.Queue.Enqueue(ctx, NewFindDriver(r.ID, r.DepartureLocation))
	return err
}

func (h *Handlers) handleStartRide(ctx context.Context, cmd queue.Command) error {
	c := cmd.(StartRide)

	r, err := h.Rides.Start(ctx, c.RideID)
	if err != nil {
		return err
	}

	started := RideStartedEvent{RideID: c.RideID, UserID: r.UserID, DriverID: c.DriverID}
	if err := h.Publisher.Publish(ctx, events.UserChannel(r.UserID), started); err != nil {
		return err
	}
	return h.Publisher.Publish(ctx, events.DriverChannel(c.DriverID), started)
}

func (h *Handlers) handleCompleteRide(ctx context.Context, cmd queue.Command) error {
	c := cmd.(CompleteRide)

	r, err := h.Rides.Complete(ctx, c.RideID)
	if err != nil {
		return err
	}

	if _, err := h.Drivers.UpdateStatus(ctx, c.DriverID, driver.StatusAvailable); err != nil {
		return err
	}

	if h.Charger != nil {
		if err := h.Charger.ChargeFare(ctx, r); err != nil {
			// The ride is done either way; settlement gets retried offline.
			h.logger().WarnContext(ctx, "fare charge failed",
				"ride_id", r.ID, "error", err)
		}
	}

	completed := RideCompletedEvent{RideID: c.RideID, UserID: r.UserID, DriverID: c.DriverID}
	if err := h.Publisher.Publish(ctx, events.UserChannel(r.UserID), completed); err != nil {
		return err
	}
	return h.Publisher.Publish(ctx, events.DriverChannel(c.DriverID), completed)
}

// giveUp cancels the ride and tells the rider nobody is coming.
func (h *Handlers) giveUp(ctx context.Context, r Ride) error {
	if _, err := h.Rides.Cancel(ctx, r.ID); err != nil {
		return fmt.Errorf("cancel ride %s: %w", r.ID, err)
	}
	gone := NoDriverAvailableEvent{RideID: r.ID, UserID: r.UserID, Message: noDriverMessage}
	return h.Publisher.Publish(ctx, events.UserChannel(r.UserID), gone)
}
