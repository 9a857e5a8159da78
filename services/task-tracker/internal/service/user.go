package service

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/uow"
)

func GetUserByPublicID(ctx context.Context, u *uow.UnitOfWork, publicID string) (model.User, bool, error) {
	return u.Users.GetByPublicID(ctx, publicID)
}

// HandleUserUpsert mirrors a created or updated auth-service user.
func HandleUserUpsert[E events.UserCreated | events.UserUpdated](ctx context.Context, u *uow.UnitOfWork, e E) error {
	c := events.UserCreated(e)
	_, err := u.Users.Upsert(ctx, model.User{PublicID: c.PublicID, Role: c.Role, Email: c.Email})
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", c.PublicID, err)
	}
	return nil
}

// HandleUserDelete drops the mirrored user; unknown ids are fine.
func HandleUserDelete(ctx context.Context, u *uow.UnitOfWork, e events.UserDeleted) error {
	if err := u.Users.Delete(ctx, e.PublicID); err != nil {
		return fmt.Errorf("delete user %s: %w", e.PublicID, err)
	}
	return nil
}
