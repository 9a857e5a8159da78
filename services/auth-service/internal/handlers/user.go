package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/tasktracker/libs/auth"
	"github.com/md-rashed-zaman/tasktracker/libs/httpx"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/service"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/uow"
)

// UnitOfWorkFactory opens a fresh unit of work per request.
type UnitOfWorkFactory interface {
	New(ctx context.Context) (*uow.UnitOfWork, error)
}

type UserHandler struct {
	uows   UnitOfWorkFactory
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewUserHandler(uows UnitOfWorkFactory, tokens *auth.TokenService, logger *slog.Logger) *UserHandler {
	return &UserHandler{uows: uows, tokens: tokens, logger: logger}
}

func (h *UserHandler) Routes(r chi.Router) {
	r.Get("/user/{user_id}", h.GetUser)
	r.Post("/user", h.CreateUser)
	r.Put("/user/{user_id}", h.UpdateUser)
	r.Delete("/user/{user_id}", h.DeleteUser)
	r.Post("/auth", h.Authenticate)
}

type authRequest struct {
	BeakShape string `json:"beak_shape"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.open(w, r)
	if !ok {
		return
	}
	defer u.Close()

	user, found, err := service.GetUser(r.Context(), u, chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, ok := h.open(w, r)
	if !ok {
		return
	}
	defer u.Close()

	user, err := service.CreateUser(r.Context(), u, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("user created", "user_id", user.ID, "public_id", user.PublicID, "role", user.Role)
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, ok := h.open(w, r)
	if !ok {
		return
	}
	defer u.Close()

	user, err := service.UpdateUser(r.Context(), u, chi.URLParam(r, "user_id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.open(w, r)
	if !ok {
		return
	}
	defer u.Close()

	if err := service.DeleteUser(r.Context(), u, chi.URLParam(r, "user_id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, ok := h.open(w, r)
	if !ok {
		return
	}
	defer u.Close()

	user, found, err := service.AuthenticateUser(r.Context(), u, req.BeakShape)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	token, err := h.tokens.Sign(user.PublicID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse{Token: token})
}

func (h *UserHandler) open(w http.ResponseWriter, r *http.Request) (*uow.UnitOfWork, bool) {
	u, err := h.uows.New(r.Context())
	if err != nil {
		h.logger.Error("open unit of work failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return u, true
}

func (h *UserHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	default:
		h.logger.Error("request failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
