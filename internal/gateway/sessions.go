package gateway

import (
	"errors"
	"sync"
)

// ErrNoSession is returned when a push has nowhere to go. Callers treat it
// as "client offline", not a fault.
var ErrNoSession = errors.New("no websocket session")

// conn is the slice of a websocket connection the gateway needs; the
// concrete type is *websocket.Conn outside tests.
type conn interface {
	WriteJSON(v any) error
	Close() error
}

// Session wraps one client connection and serializes writes; gorilla
// connections allow a single concurrent writer. The same Session is used
// for direct replies and for event pushes via the Registry.
type Session struct {
	conn conn
	mu   sync.Mutex
}

func NewSession(c conn) *Session {
	return &Session{conn: c}
}

func (s *Session) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *Session) Close() error {
	return s.conn.Close()
}

// Registry tracks authenticated user and driver sessions. A reconnect
// replaces the previous session for the same id.
type Registry struct {
	mu      sync.RWMutex
	users   map[string]*Session
	drivers map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		users:   make(map[string]*Session),
		drivers: make(map[string]*Session),
	}
}

func (r *Registry) RegisterUser(userID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = s
}

func (r *Registry) RegisterDriver(driverID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[driverID] = s
}

// Drop removes every registration bound to s. Called when the read loop
// exits.
func (r *Registry) Drop(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.users {
		if sess == s {
			delete(r.users, id)
		}
	}
	for id, sess := range r.drivers {
		if sess == s {
			delete(r.drivers, id)
		}
	}
}

func (r *Registry) SendToUser(userID string, v any) error {
	r.mu.RLock()
	s, ok := r.users[userID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.Send(v)
}

func (r *Registry) SendToDriver(driverID string, v any) error {
	r.mu.RLock()
	s, ok := r.drivers[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.Send(v)
}
