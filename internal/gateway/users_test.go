package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/ride-dispatch/internal/user"
)

type fakeUserRepo struct {
	users map[string]user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]user.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.users[u.ID] = u
	return u, nil
}

func (r *fakeUserRepo) Get(_ context.Context, id string) (user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Update(_ context.Context, u user.User) (user.User, error) {
	if _, ok := r.users[u.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeUserRepo, *recordingEnqueuer) {
	t.Helper()
	messages, enq, _ := newMessageHandler(t)
	repo := newFakeUserRepo()
	return NewServer(messages, enq, NewRegistry(), repo, nil), repo, enq
}

func TestCreateUserReturnsProfile(t *testing.T) {
	srv, repo, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var got user.User
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID == "" || got.Name != "Ada" || got.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, ok := repo.users[got.ID]; !ok {
		t.Fatalf("user %s not persisted", got.ID)
	}
}

func TestCreateUserRejectsMissingFields(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"name":"Ada"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetUserUnknownIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/nope", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	repo.users["u1"] = user.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/u1",
		strings.NewReader(`{"name":"Ada L","email":"ada@example.com"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d", rec.Code, http.StatusOK)
	}
	if repo.users["u1"].Name != "Ada L" {
		t.Fatalf("name = %q, want %q", repo.users["u1"].Name, "Ada L")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/users/u1", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if _, ok := repo.users["u1"]; ok {
		t.Fatal("user u1 still present after delete")
	}
}

func TestRequestRideEndpointAcceptsAndEnqueues(t *testing.T) {
	srv, _, enq := newTestServer(t)

	body := `{"user_id":"u1","departure":{"latitude":51.5007,"longitude":-0.1246},"destination":{"latitude":51.47,"longitude":-0.4543}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rides", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if len(enq.commands) != 1 {
		t.Fatalf("enqueued %d commands, want 1", len(enq.commands))
	}
}

func TestRequestRideEndpointHonorsIdempotencyKey(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := `{"user_id":"u1","departure":{"latitude":51.5007,"longitude":-0.1246},"destination":{"latitude":51.47,"longitude":-0.4543}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rides", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "not-a-uuid")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
