package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/tasktracker/libs/auth"
	"github.com/md-rashed-zaman/tasktracker/libs/broker/memory"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore/memstore"
	libevents "github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/service"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	router  *chi.Mux
	broker  *memory.Broker
	tokens  *auth.TokenService
	factory *uow.Factory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	b := memory.New()
	tokens, err := auth.NewTokenService("secret", time.Hour)
	require.NoError(t, err)

	factory := &uow.Factory{
		Store:  func(context.Context) (docstore.Store, error) { return store, nil },
		Sender: libevents.NewBus(b, events.NewRegistry(), nil),
	}
	r := chi.NewRouter()
	NewTaskHandler(factory, tokens, slog.New(slog.DiscardHandler)).Routes(r)
	return &testServer{t: t, router: r, broker: b, tokens: tokens, factory: factory}
}

// user mirrors a user the way the consumer would and returns a token for it.
func (s *testServer) user(publicID string, role model.Role) string {
	s.t.Helper()
	u, err := s.factory.New(context.Background())
	require.NoError(s.t, err)
	defer u.Close()
	require.NoError(s.t, service.HandleUserUpsert(context.Background(), u, events.UserCreated{
		PublicID: publicID, Role: role, Email: publicID + "@example.com",
	}))
	token, err := s.tokens.Sign(publicID)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(token, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) subjects() []string {
	var out []string
	for _, m := range s.broker.Published() {
		out = append(out, m.Subject)
	}
	return out
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)
	token := s.user("mgr", model.RoleManager)

	rec := s.do(token, http.MethodGet, "/whoami", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"public_id":"mgr","role":"manager","email":"mgr@example.com"}`, rec.Body.String())

	orphan, err := s.tokens.Sign("not-mirrored")
	require.NoError(t, err)
	other, err := auth.NewTokenService("other-secret", time.Hour)
	require.NoError(t, err)
	forged, err := other.Sign("mgr")
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"missing":      "",
		"garbage":      "not-a-jwt",
		"wrong secret": forged,
		"unknown user": orphan,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusForbidden, s.do(tok, http.MethodGet, "/whoami", "").Code)
		})
	}
}

func TestTaskFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.user("adm", model.RoleAdmin)
	mgr := s.user("mgr", model.RoleManager)

	rec := s.do(admin, http.MethodPost, "/task", `{"description":"feed the parrots","jira_id":"POPUG-3"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var task model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, "mgr", task.UserID)
	assert.Equal(t, "POPUG-3", task.JiraID)

	var listed []model.Task
	rec = s.do(mgr, http.MethodGet, "/task", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = s.do(admin, http.MethodGet, "/task", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1, "admin sees every open task")

	rec = s.do(admin, http.MethodPost, "/task/"+task.PublicID+"/close", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(mgr, http.MethodPost, "/task/"+task.PublicID+"/close", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(mgr, http.MethodGet, "/task", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed)

	assert.Equal(t, []string{
		"Task.TaskCreated.1", "Task.TaskAdded.1",
		"Task.TaskUpdated.1", "Task.TaskClosed.1",
	}, s.subjects())
}

func TestShuffle(t *testing.T) {
	s := newTestServer(t)
	admin := s.user("adm", model.RoleAdmin)
	acc := s.user("acc", model.RoleAccountant)

	assert.Equal(t, http.StatusForbidden, s.do(acc, http.MethodPost, "/shuffle", "").Code)
	assert.Empty(t, s.broker.Published())

	assert.Equal(t, http.StatusCreated, s.do(admin, http.MethodPost, "/shuffle", "").Code)
	assert.Equal(t, []string{"Task.TaskShuffleRequested.1"}, s.subjects())
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	admin := s.user("adm", model.RoleAdmin)

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"no assignee", http.MethodPost, "/task", `{"description":"feed"}`, http.StatusConflict},
		{"jira id in description", http.MethodPost, "/task", `{"description":"[POPUG-1] feed"}`, http.StatusBadRequest},
		{"empty description", http.MethodPost, "/task", `{"description":""}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/task", `{`, http.StatusBadRequest},
		{"close missing", http.MethodPost, "/task/nope/close", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(admin, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, s.broker.Published())
}

func TestStoreUnavailable(t *testing.T) {
	tokens, err := auth.NewTokenService("secret", time.Hour)
	require.NoError(t, err)
	factory := &uow.Factory{
		Store: func(context.Context) (docstore.Store, error) { return nil, errors.New("dial tcp: refused") },
	}
	r := chi.NewRouter()
	NewTaskHandler(factory, tokens, slog.New(slog.DiscardHandler)).Routes(r)

	token, err := tokens.Sign("anyone")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
