package storage

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	libevents "github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/model"
)

const usersCollection = "user"

type userDocument struct {
	PublicID string     `json:"public_id"`
	Role     model.Role `json:"role"`
	Email    string     `json:"email"`
}

// UserRepository records a User event for every write in its buffer.
type UserRepository struct {
	store  docstore.Store
	events libevents.Buffer
}

func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Events() *libevents.Buffer { return &r.events }

func (r *UserRepository) GetByID(ctx context.Context, id string) (model.User, bool, error) {
	return r.findOne(ctx, docstore.Filter{docstore.IDField: id})
}

func (r *UserRepository) GetByPublicID(ctx context.Context, publicID string) (model.User, bool, error) {
	return r.findOne(ctx, docstore.Filter{"public_id": publicID})
}

func (r *UserRepository) Create(ctx context.Context, role model.Role, email string) (model.User, error) {
	doc := userDocument{PublicID: NewPublicID(), Role: role, Email: email}
	id, err := r.store.Insert(ctx, usersCollection, doc)
	if err != nil {
		return model.User{}, err
	}
	user := model.User{ID: id, PublicID: doc.PublicID, Role: doc.Role, Email: doc.Email}
	r.events.Append(events.UserCreated{PublicID: user.PublicID, Role: user.Role, Email: user.Email})
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user model.User) (model.User, error) {
	doc := userDocument{PublicID: user.PublicID, Role: user.Role, Email: user.Email}
	if err := r.store.Replace(ctx, usersCollection, user.ID, doc); err != nil {
		return model.User{}, err
	}
	r.events.Append(events.UserUpdated{PublicID: user.PublicID, Role: user.Role, Email: user.Email})
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, user model.User) error {
	if _, err := r.store.Delete(ctx, usersCollection, docstore.Filter{docstore.IDField: user.ID}); err != nil {
		return err
	}
	r.events.Append(events.UserDeleted{PublicID: user.PublicID})
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, f docstore.Filter) (model.User, bool, error) {
	d, ok, err := r.store.FindOne(ctx, usersCollection, f)
	if err != nil || !ok {
		return model.User{}, false, err
	}
	var doc userDocument
	if err := d.Decode(&doc); err != nil {
		return model.User{}, false, fmt.Errorf("user %s: %w", d.ID, err)
	}
	return model.User{ID: d.ID, PublicID: doc.PublicID, Role: doc.Role, Email: doc.Email}, true, nil
}

// NewPublicID returns a random 32 character hex id.
func NewPublicID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
