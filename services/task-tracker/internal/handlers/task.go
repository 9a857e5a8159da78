package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/tasktracker/libs/auth"
	"github.com/md-rashed-zaman/tasktracker/libs/httpx"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/service"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/uow"
)

// UnitOfWorkFactory opens a fresh unit of work per request.
type UnitOfWorkFactory interface {
	New(ctx context.Context) (*uow.UnitOfWork, error)
}

type TaskHandler struct {
	uows   UnitOfWorkFactory
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewTaskHandler(uows UnitOfWorkFactory, tokens *auth.TokenService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{uows: uows, tokens: tokens, logger: logger}
}

// Routes mounts every endpoint behind Authenticate.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)
		r.Get("/whoami", h.WhoAmI)
		r.Get("/task", h.ListTasks)
		r.Post("/task", h.CreateTask)
		r.Post("/task/{task_id}/close", h.CloseTask)
		r.Post("/shuffle", h.Shuffle)
	})
}

func (h *TaskHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	httpx.WriteJSON(w, http.StatusOK, user)
}

// ListTasks returns open tasks: all of them for an admin, otherwise the
// caller's own.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	filter := model.TaskFilter{Status: model.TaskOpen}
	if user.Role != model.RoleAdmin {
		filter.UserID = user.PublicID
	}

	u, ok := h.open(w, r)
	if !ok {
		return
	}
	defer u.Close()

	tasks, err := service.GetTasks(r.Context(), u, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, ok := h.open(w, r)
	if !ok {
		return
	}
	defer u.Close()

	task, err := service.CreateTask(r.Context(), u, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("task created", "task_id", task.PublicID, "assignee", task.UserID)
	httpx.WriteJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CloseTask(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	u, ok := h.open(w, r)
	if !ok {
		return
	}
	defer u.Close()

	task, err := service.CloseTask(r.Context(), u, user.PublicID, chi.URLParam(r, "task_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, task)
}

// Shuffle only records the request; the consumer does the reassignment.
func (h *TaskHandler) Shuffle(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	if user.Role != model.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	u, ok := h.open(w, r)
	if !ok {
		return
	}
	defer u.Close()

	if err := service.RequestTaskShuffle(r.Context(), u, user.PublicID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *TaskHandler) open(w http.ResponseWriter, r *http.Request) (*uow.UnitOfWork, bool) {
	u, err := h.uows.New(r.Context())
	if err != nil {
		h.logger.Error("open unit of work failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return u, true
}

func (h *TaskHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "task not found", http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, service.ErrNoAssignee):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("request failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
