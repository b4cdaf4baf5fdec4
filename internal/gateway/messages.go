package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/example/ride-dispatch/internal/driver"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/ids"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/queue"
	"github.com/example/ride-dispatch/internal/quote"
	"github.com/example/ride-dispatch/internal/ride"
)

// inbound covers every client message; Type picks which fields matter.
type inbound struct {
	Type           string   `json:"type"`
	UserID         string   `json:"user_id"`
	DriverID       string   `json:"driver_id"`
	RideID         string   `json:"ride_id"`
	DepartureLat   *float64 `json:"departure_lat"`
	DepartureLon   *float64 `json:"departure_lon"`
	DestinationLat *float64 `json:"destination_lat"`
	DestinationLon *float64 `json:"destination_lon"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	Status         string   `json:"status"`
}

// driverDirectory is what auth_driver needs from the driver service.
type driverDirectory interface {
	Get(ctx context.Context, id string) (driver.Driver, error)
}

// locationPublisher sends position pings to the ingest pipeline.
type locationPublisher interface {
	PublishLocation(ctx context.Context, ping ingest.LocationPing) error
}

// MessageHandler translates websocket verbs into queue commands and
// immediate replies. Dispatch itself always goes through the queue; the
// only synchronous answers are auth, quotes and enqueue acknowledgements.
type MessageHandler struct {
	Queue     queue.Enqueuer
	Quotes    *quote.Service
	Drivers   driverDirectory
	Sessions  *Registry
	Locations locationPublisher // optional; nil falls back to direct enqueue
	Logger    *slog.Logger
}

func (h *MessageHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Handle processes one raw client frame. Unknown types are ignored.
func (h *MessageHandler) Handle(ctx context.Context, sess *Session, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger().Debug("dropping malformed frame", "error", err)
		return
	}

	switch msg.Type {
	case "auth_user":
		h.authUser(sess, msg)
	case "auth_driver":
		h.authDriver(ctx, sess, msg)
	case "request_quote":
		h.requestQuote(ctx, sess, msg)
	case "request_ride":
		h.requestRide(ctx, msg)
	case "accept_ride":
		h.enqueue(ctx, ride.AcceptRide{RideID: msg.RideID, DriverID: msg.DriverID})
	case "reject_ride":
		h.enqueue(ctx, ride.RejectRide{RideID: msg.RideID, DriverID: msg.DriverID})
	case "start_ride":
		h.enqueue(ctx, ride.StartRide{RideID: msg.RideID, DriverID: msg.DriverID})
	case "complete_ride":
		h.enqueue(ctx, ride.CompleteRide{RideID: msg.RideID, DriverID: msg.DriverID})
	case "update_location":
		h.updateLocation(ctx, sess, msg)
	case "update_status":
		h.updateStatus(ctx, sess, msg)
	}
}

func (h *MessageHandler) authUser(sess *Session, msg inbound) {
	if msg.UserID == "" {
		return
	}
	h.Sessions.RegisterUser(msg.UserID, sess)
	h.reply(sess, map[string]any{"type": "auth_success", "role": "user"})
}

func (h *MessageHandler) authDriver(ctx context.Context, sess *Session, msg inbound) {
	if msg.DriverID == "" {
		return
	}
	d, err := h.Drivers.Get(ctx, msg.DriverID)
	if errors.Is(err, driver.ErrNotFound) {
		h.reply(sess, map[string]any{"type": "auth_error", "role": "driver", "error": "Driver not found"})
		return
	}
	if err != nil {
		h.reply(sess, map[string]any{"type": "auth_error", "role": "driver", "error": "try again"})
		return
	}
	h.Sessions.RegisterDriver(msg.DriverID, sess)
	h.reply(sess, map[string]any{
		"type": "auth_success",
		"role": "driver",
		"current_location": map[string]float64{
			"lat": d.CurrentLocation.Lat,
			"lon": d.CurrentLocation.Lon,
		},
		"status": string(d.Status),
	})
}

func (h *MessageHandler) requestQuote(ctx context.Context, sess *Session, msg inbound) {
	if msg.UserID == "" || msg.DepartureLat == nil || msg.DepartureLon == nil ||
		msg.DestinationLat == nil || msg.DestinationLon == nil {
		h.reply(sess, map[string]any{"type": "quote_error", "error": "Missing required fields"})
		return
	}

	q, err := h.Quotes.Create(ctx,
		geo.Location{Lat: *msg.DepartureLat, Lon: *msg.DepartureLon},
		geo.Location{Lat: *msg.DestinationLat, Lon: *msg.DestinationLon})
	if err != nil {
		h.reply(sess, map[string]any{"type": "quote_error", "error": err.Error()})
		return
	}

	h.reply(sess, map[string]any{
		"type": "quote_received",
		"quote": map[string]any{
			"id":               q.ID,
			"departure":        map[string]float64{"lat": q.Departure.Lat, "lon": q.Departure.Lon},
			"destination":      map[string]float64{"lat": q.Destination.Lat, "lon": q.Destination.Lon},
			"distance_km":      q.DistanceMeters / 1000.0,
			"duration_minutes": q.Duration.Minutes(),
			"fare":             q.Fare,
		},
	})
}

func (h *MessageHandler) requestRide(ctx context.Context, msg inbound) {
	if msg.UserID == "" || msg.DepartureLat == nil || msg.DepartureLon == nil ||
		msg.DestinationLat == nil || msg.DestinationLon == nil {
		return
	}

	cmd := ride.RequestRide{
		RideID:              ids.New(),
		UserID:              msg.UserID,
		DepartureLocation:   geo.Location{Lat: *msg.DepartureLat, Lon: *msg.DepartureLon},
		DestinationLocation: geo.Location{Lat: *msg.DestinationLat, Lon: *msg.DestinationLon},
	}
	h.enqueue(ctx, cmd)

	// Ack so the rider's UI can track the ride before any event arrives.
	if err := h.Sessions.SendToUser(msg.UserID, map[string]any{
		"type": "ride_requested", "ride_id": cmd.RideID,
	}); err != nil && !errors.Is(err, ErrNoSession) {
		h.logger().Warn("ride_requested ack failed", "user_id", msg.UserID, "error", err)
	}
}

func (h *MessageHandler) updateLocation(ctx context.Context, sess *Session, msg inbound) {
	if msg.DriverID == "" || msg.Lat == nil || msg.Lon == nil {
		h.reply(sess, map[string]any{"type": "location_update_error", "error": "Missing required fields"})
		return
	}
	loc := geo.Location{Lat: *msg.Lat, Lon: *msg.Lon}
	if err := loc.Validate(); err != nil {
		h.reply(sess, map[string]any{"type": "location_update_error", "error": err.Error()})
		return
	}

	// Pings go through kafka when the pipeline is up; the consumer turns
	// them into queue commands.
	if h.Locations != nil {
		ping := ingest.LocationPing{DriverID: msg.DriverID, Location: loc, ReportedAt: time.Now().UTC()}
		if err := h.Locations.PublishLocation(ctx, ping); err != nil {
			h.reply(sess, map[string]any{"type": "location_update_error", "error": "try again"})
			return
		}
	} else {
		if _, err := h.Queue.Enqueue(ctx, driver.UpdateDriverLocation{DriverID: msg.DriverID, Location: loc}); err != nil {
			h.reply(sess, map[string]any{"type": "location_update_error", "error": "try again"})
			return
		}
	}
	h.reply(sess, map[string]any{"type": "location_update_queued", "driver_id": msg.DriverID})
}

func (h *MessageHandler) updateStatus(ctx context.Context, sess *Session, msg inbound) {
	if msg.DriverID == "" || msg.Status == "" {
		h.reply(sess, map[string]any{"type": "status_update_error", "error": "Missing required fields"})
		return
	}
	status := driver.Status(msg.Status)
	if !status.Valid() {
		h.reply(sess, map[string]any{
			"type":  "status_update_error",
			"error": "Invalid status. Must be one of: available, busy, offline",
		})
		return
	}
	if _, err := h.Queue.Enqueue(ctx, driver.UpdateDriverStatus{DriverID: msg.DriverID, Status: status}); err != nil {
		h.reply(sess, map[string]any{"type": "status_update_error", "error": "try again"})
		return
	}
	h.reply(sess, map[string]any{"type": "status_update_queued", "driver_id": msg.DriverID, "status": string(status)})
}

func (h *MessageHandler) enqueue(ctx context.Context, cmd queue.Command) {
	if _, err := h.Queue.Enqueue(ctx, cmd); err != nil {
		h.logger().Error("enqueue failed", "command", cmd.CommandType(), "error", err)
	}
}

func (h *MessageHandler) reply(sess *Session, v any) {
	if err := sess.Send(v); err != nil {
		h.logger().Debug("reply failed", "error", err)
	}
}
