package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/driver"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/queue"
	"github.com/example/ride-dispatch/internal/quote"
	"github.com/example/ride-dispatch/internal/ride"
)

type fakeConn struct {
	sent []any
}

func (f *fakeConn) WriteJSON(v any) error { f.sent = append(f.sent, v); return nil }
func (f *fakeConn) Close() error          { return nil }

func (f *fakeConn) lastType(t *testing.T) string {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("no frames sent")
	}
	m, ok := f.sent[len(f.sent)-1].(map[string]any)
	if !ok {
		t.Fatalf("unexpected frame %T", f.sent[len(f.sent)-1])
	}
	typ, _ := m["type"].(string)
	return typ
}

type recordingEnqueuer struct {
	commands []queue.Command
}

func (f *recordingEnqueuer) Enqueue(ctx context.Context, cmd queue.Command) (string, error) {
	f.commands = append(f.commands, cmd)
	return "queued", nil
}

func (f *recordingEnqueuer) EnqueueDelayed(ctx context.Context, cmd queue.Command, _ time.Duration) (string, error) {
	f.commands = append(f.commands, cmd)
	return "queued", nil
}

type fakeDirectory struct {
	drivers map[string]driver.Driver
}

func (f *fakeDirectory) Get(ctx context.Context, id string) (driver.Driver, error) {
	d, ok := f.drivers[id]
	if !ok {
		return driver.Driver{}, driver.ErrNotFound
	}
	return d, nil
}

func newMessageHandler(t *testing.T) (*MessageHandler, *recordingEnqueuer, *fakeDirectory) {
	t.Helper()
	quotes, err := quote.NewService(quote.DefaultFareConfig(), quote.SpeedEstimator{AverageSpeedKMH: 30})
	if err != nil {
		t.Fatal(err)
	}
	enq := &recordingEnqueuer{}
	dir := &fakeDirectory{drivers: make(map[string]driver.Driver)}
	h := &MessageHandler{
		Queue:    enq,
		Quotes:   quotes,
		Drivers:  dir,
		Sessions: NewRegistry(),
	}
	return h, enq, dir
}

func frame(t *testing.T, v map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestAuthUserRegistersSession(t *testing.T) {
	h, _, _ := newMessageHandler(t)
	c := &fakeConn{}
	sess := NewSession(c)

	h.Handle(context.Background(), sess, frame(t, map[string]any{"type": "auth_user", "user_id": "user-1"}))

	if c.lastType(t) != "auth_success" {
		t.Fatalf("expected auth_success, got %s", c.lastType(t))
	}
	if err := h.Sessions.SendToUser("user-1", map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("session must be registered: %v", err)
	}
}

func TestAuthDriverUnknownIsRejected(t *testing.T) {
	h, _, _ := newMessageHandler(t)
	c := &fakeConn{}

	h.Handle(context.Background(), NewSession(c), frame(t, map[string]any{"type": "auth_driver", "driver_id": "ghost"}))

	if c.lastType(t) != "auth_error" {
		t.Fatalf("expected auth_error, got %s", c.lastType(t))
	}
}

func TestAuthDriverReturnsProfile(t *testing.T) {
	h, _, dir := newMessageHandler(t)
	dir.drivers["driver-1"] = driver.Driver{
		ID: "driver-1", Status: driver.StatusAvailable,
		CurrentLocation: geo.Location{Lat: 51.5, Lon: -0.1},
	}
	c := &fakeConn{}

	h.Handle(context.Background(), NewSession(c), frame(t, map[string]any{"type": "auth_driver", "driver_id": "driver-1"}))

	if c.lastType(t) != "auth_success" {
		t.Fatalf("expected auth_success, got %s", c.lastType(t))
	}
	reply := c.sent[0].(map[string]any)
	if reply["status"] != "available" {
		t.Fatalf("auth reply must carry current status, got %+v", reply)
	}
}

func TestRequestQuoteRepliesWithFare(t *testing.T) {
	h, _, _ := newMessageHandler(t)
	c := &fakeConn{}

	h.Handle(context.Background(), NewSession(c), frame(t, map[string]any{
		"type": "request_quote", "user_id": "user-1",
		"departure_lat": 51.5007, "departure_lon": -0.1246,
		"destination_lat": 51.4700, "destination_lon": -0.4543,
	}))

	if c.lastType(t) != "quote_received" {
		t.Fatalf("expected quote_received, got %+v", c.sent)
	}
	reply := c.sent[0].(map[string]any)
	q := reply["quote"].(map[string]any)
	fare := q["fare"].(quote.Money)
	if fare.Amount <= 0 || fare.Currency != "GBP" {
		t.Fatalf("unexpected fare %+v", fare)
	}
}

func TestRequestQuoteMissingFieldsIsError(t *testing.T) {
	h, _, _ := newMessageHandler(t)
	c := &fakeConn{}

	h.Handle(context.Background(), NewSession(c), frame(t, map[string]any{
		"type": "request_quote", "user_id": "user-1", "departure_lat": 51.5,
	}))

	if c.lastType(t) != "quote_error" {
		t.Fatalf("expected quote_error, got %s", c.lastType(t))
	}
}

func TestRequestRideEnqueuesAndAcks(t *testing.T) {
	h, enq, _ := newMessageHandler(t)
	c := &fakeConn{}
	sess := NewSession(c)
	h.Handle(context.Background(), sess, frame(t, map[string]any{"type": "auth_user", "user_id": "user-1"}))

	h.Handle(context.Background(), sess, frame(t, map[string]any{
		"type": "request_ride", "user_id": "user-1",
		"departure_lat": 51.5007, "departure_lon": -0.1246,
		"destination_lat": 51.4700, "destination_lon": -0.4543,
	}))

	if len(enq.commands) != 1 {
		t.Fatalf("expected one command, got %d", len(enq.commands))
	}
	rr, ok := enq.commands[0].(ride.RequestRide)
	if !ok || rr.UserID != "user-1" || rr.RideID == "" {
		t.Fatalf("unexpected command %+v", enq.commands[0])
	}
	if c.lastType(t) != "ride_requested" {
		t.Fatalf("expected ride_requested ack, got %s", c.lastType(t))
	}
}

func TestRideVerbsMapToCommands(t *testing.T) {
	cases := []struct {
		verb string
		want string
	}{
		{"accept_ride", "accept_ride"},
		{"reject_ride", "reject_ride"},
		{"start_ride", "start_ride"},
		{"complete_ride", "complete_ride"},
	}
	for _, tc := range cases {
		t.Run(tc.verb, func(t *testing.T) {
			h, enq, _ := newMessageHandler(t)
			h.Handle(context.Background(), NewSession(&fakeConn{}), frame(t, map[string]any{
				"type": tc.verb, "ride_id": "ride-1", "driver_id": "driver-1",
			}))
			if len(enq.commands) != 1 {
				t.Fatalf("expected one command, got %d", len(enq.commands))
			}
			if got := enq.commands[0].CommandType(); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestUpdateLocationWithoutPipelineEnqueuesDirectly(t *testing.T) {
	h, enq, _ := newMessageHandler(t)
	c := &fakeConn{}

	h.Handle(context.Background(), NewSession(c), frame(t, map[string]any{
		"type": "update_location", "driver_id": "driver-1", "lat": 51.5, "lon": -0.1,
	}))

	if len(enq.commands) != 1 {
		t.Fatalf("expected one command, got %d", len(enq.commands))
	}
	ul, ok := enq.commands[0].(driver.UpdateDriverLocation)
	if !ok || ul.DriverID != "driver-1" {
		t.Fatalf("unexpected command %+v", enq.commands[0])
	}
	if c.lastType(t) != "location_update_queued" {
		t.Fatalf("expected ack, got %s", c.lastType(t))
	}
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	h, enq, _ := newMessageHandler(t)
	c := &fakeConn{}

	h.Handle(context.Background(), NewSession(c), frame(t, map[string]any{
		"type": "update_status", "driver_id": "driver-1", "status": "sleeping",
	}))

	if len(enq.commands) != 0 {
		t.Fatalf("invalid status must not enqueue, got %+v", enq.commands)
	}
	if c.lastType(t) != "status_update_error" {
		t.Fatalf("expected status_update_error, got %s", c.lastType(t))
	}
}

func TestUnknownVerbIsIgnored(t *testing.T) {
	h, enq, _ := newMessageHandler(t)
	c := &fakeConn{}

	h.Handle(context.Background(), NewSession(c), frame(t, map[string]any{"type": "dance"}))

	if len(enq.commands) != 0 || len(c.sent) != 0 {
		t.Fatal("unknown verbs must be silently dropped")
	}
}
