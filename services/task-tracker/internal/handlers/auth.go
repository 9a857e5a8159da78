package handlers

import (
	"context"
	"net/http"

	"github.com/md-rashed-zaman/tasktracker/libs/auth"
	"github.com/md-rashed-zaman/tasktracker/libs/httpx"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/service"
)

type ctxKey struct{}

// CurrentUser returns the user resolved by Authenticate.
func CurrentUser(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(model.User)
	return u, ok
}

// Authenticate resolves the bearer token to a mirrored user. A missing or
// invalid token and an unknown user are all answered with 403.
func (h *TaskHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		publicID, err := h.tokens.Verify(raw)
		if err != nil {
			h.logger.Debug("token rejected", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		u, ok := h.open(w, r)
		if !ok {
			return
		}
		user, found, err := service.GetUserByPublicID(r.Context(), u, publicID)
		u.Close()
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !found {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}
