package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/ids"
	"github.com/example/ride-dispatch/internal/queue"
	"github.com/example/ride-dispatch/internal/ride"
)

// Server is the client-facing edge: a websocket endpoint for the
// interactive protocol and a small REST surface for ride submission and
// operations endpoints.
type Server struct {
	messages *MessageHandler
	queue    queue.Enqueuer
	sessions *Registry
	users    UserRepository
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(messages *MessageHandler, enq queue.Enqueuer, sessions *Registry, users UserRepository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		messages: messages,
		queue:    enq,
		sessions: sessions,
		users:    users,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/ws", s.handleWS).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides", s.handleRequestRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/users", s.handleCreateUser).Methods("POST")
	s.mux.HandleFunc("/api/v1/users/{id}", s.handleGetUser).Methods("GET")
	s.mux.HandleFunc("/api/v1/users/{id}", s.handleUpdateUser).Methods("PUT")
	s.mux.HandleFunc("/api/v1/users/{id}", s.handleDeleteUser).Methods("DELETE")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	sess := NewSession(conn)

	// The read loop owns the connection lifetime; registration happens via
	// auth frames handled inside.
	go func() {
		defer func() {
			s.sessions.Drop(sess)
			_ = sess.Close()
		}()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.messages.Handle(context.Background(), sess, raw)
		}
	}()
}

type rideRequestBody struct {
	UserID      string       `json:"user_id"`
	Departure   geo.Location `json:"departure"`
	Destination geo.Location `json:"destination"`
}

// handleRequestRide enqueues a RequestRide command. An Idempotency-Key
// header becomes the ride id, so duplicate submissions collide at insert
// time instead of creating two rides.
func (s *Server) handleRequestRide(w http.ResponseWriter, r *http.Request) {
	var body rideRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := errors.Join(body.Departure.Validate(), body.Destination.Validate()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	rideID := r.Header.Get("Idempotency-Key")
	if rideID == "" {
		rideID = ids.New()
	} else if err := ids.Validate(rideID); err != nil {
		http.Error(w, "Idempotency-Key must be a uuid", http.StatusBadRequest)
		return
	}

	cmd := ride.RequestRide{
		RideID:              rideID,
		UserID:              body.UserID,
		DepartureLocation:   body.Departure,
		DestinationLocation: body.Destination,
	}
	if _, err := s.queue.Enqueue(r.Context(), cmd); err != nil {
		s.logger.Error("enqueue ride request failed", "error", err)
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"ride_id": rideID})
}
