package driver

import (
	"context"
	"fmt"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/queue"
)

// UpdateDriverLocation is a position ping, usually arriving through the
// location ingest pipeline rather than directly from the gateway.
type UpdateDriverLocation struct {
	DriverID string       `json:"driver_id"`
	Location geo.Location `json:"location"`
}

func (UpdateDriverLocation) CommandType() string { return "update_driver_location" }

// UpdateDriverStatus flips a driver's availability.
type UpdateDriverStatus struct {
	DriverID string `json:"driver_id"`
	Status   Status `json:"status"`
}

func (UpdateDriverStatus) CommandType() string { return "update_driver_status" }

// Handlers wires the driver commands into the command queue.
type Handlers struct {
	Drivers *Service
}

func (h *Handlers) Register(reg *queue.Registry) {
	reg.Register(UpdateDriverLocation{}, queue.HandlerFunc(h.handleUpdateLocation))
	reg.Register(UpdateDriverStatus{}, queue.HandlerFunc(h.handleUpdateStatus))
}

func (h *Handlers) handleUpdateLocation(ctx context.Context, cmd queue.Command) error {
	c := cmd.(UpdateDriverLocation)
	if err := c.Location.Validate(); err != nil {
		return fmt.Errorf("driver %s location: %w", c.DriverID, err)
	}
	_, err := h.Drivers.UpdateLocation(ctx, c.DriverID, c.Location)
	return err
}

func (h *Handlers) handleUpdateStatus(ctx context.Context, cmd queue.Command) error {
	c := cmd.(UpdateDriverStatus)
	if !c.Status.Valid() {
		return fmt.Errorf("driver %s: unknown status %q", c.DriverID, c.Status)
	}
	_, err := h.Drivers.UpdateStatus(ctx, c.DriverID, c.Status)
	return err
}
