package storage

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
)

const usersCollection = "user"

// UserRepository keeps the local copy of auth-service users. It is fed by
// consumed events and emits none of its own.
type UserRepository struct {
	store docstore.Store
}

func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) GetByPublicID(ctx context.Context, publicID string) (model.User, bool, error) {
	d, ok, err := r.store.FindOne(ctx, usersCollection, docstore.Filter{"public_id": publicID})
	if err != nil || !ok {
		return model.User{}, false, err
	}
	return decodeUser(d)
}

// GetRandom picks a user whose role is one of roles; no roles means any
// user.
func (r *UserRepository) GetRandom(ctx context.Context, roles []model.Role) (model.User, bool, error) {
	var f docstore.Filter
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, role := range roles {
			names[i] = string(role)
		}
		f = docstore.Filter{"role": names}
	}
	d, ok, err := r.store.Sample(ctx, usersCollection, f)
	if err != nil || !ok {
		return model.User{}, false, err
	}
	return decodeUser(d)
}

// Upsert stores user under its public id, so concurrent writers of the
// same user converge on one document.
func (r *UserRepository) Upsert(ctx context.Context, user model.User) (model.User, error) {
	if err := r.store.Replace(ctx, usersCollection, user.PublicID, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Delete is a no-op for an unknown public id.
func (r *UserRepository) Delete(ctx context.Context, publicID string) error {
	_, err := r.store.Delete(ctx, usersCollection, docstore.Filter{"public_id": publicID})
	return err
}

func decodeUser(d docstore.Document) (model.User, bool, error) {
	var u model.User
	if err := d.Decode(&u); err != nil {
		return model.User{}, false, fmt.Errorf("user: %w", err)
	}
	return u, true, nil
}
