package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/ride-dispatch/internal/ids"
	"github.com/example/ride-dispatch/internal/user"
)

// UserRepository is the profile store behind the /api/v1/users endpoints.
type UserRepository interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	Get(ctx context.Context, id string) (user.User, error)
	Update(ctx context.Context, u user.User) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type userBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Email == "" {
		http.Error(w, "name and email are required", http.StatusBadRequest)
		return
	}

	u, err := s.users.Create(r.Context(), user.User{
		ID:        ids.New(),
		Name:      body.Name,
		Email:     body.Email,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("create user failed", "error", err)
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, user.ErrNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("get user failed", "error", err)
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, err := s.users.Update(r.Context(), user.User{
		ID:    mux.Vars(r)["id"],
		Name:  body.Name,
		Email: body.Email,
	})
	if errors.Is(err, user.ErrNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("update user failed", "error", err)
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	err := s.users.Delete(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, user.ErrNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("delete user failed", "error", err)
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
