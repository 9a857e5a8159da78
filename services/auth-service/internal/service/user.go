// Package service holds the auth-service use cases. Each one runs inside
// the unit of work it is given and commits it at most once.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/model"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/uow"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

type CreateUserRequest struct {
	Role      model.Role `json:"role"`
	Email     string     `json:"email"`
	BeakShape string     `json:"beak_shape"`
}

type UpdateUserRequest struct {
	Role      model.Role `json:"role"`
	Email     string     `json:"email"`
	BeakShape string     `json:"beak_shape"`
}

func validate(role model.Role, email, beakShape string) error {
	switch {
	case !role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	case !strings.Contains(email, "@"):
		return fmt.Errorf("%w: email %q", ErrValidation, email)
	case strings.TrimSpace(beakShape) == "":
		return fmt.Errorf("%w: beak_shape is required", ErrValidation)
	}
	return nil
}

func CreateUser(ctx context.Context, u *uow.UnitOfWork, req CreateUserRequest) (model.User, error) {
	if err := validate(req.Role, req.Email, req.BeakShape); err != nil {
		return model.User{}, err
	}
	user, err := u.Users.Create(ctx, req.Role, req.Email)
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	if err := u.Auths.SetCredential(ctx, user.ID, req.BeakShape); err != nil {
		return model.User{}, fmt.Errorf("set credential: %w", err)
	}
	if err := u.Commit(ctx); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func GetUser(ctx context.Context, u *uow.UnitOfWork, id string) (model.User, bool, error) {
	return u.Users.GetByID(ctx, id)
}

func UpdateUser(ctx context.Context, u *uow.UnitOfWork, id string, req UpdateUserRequest) (model.User, error) {
	if err := validate(req.Role, req.Email, req.BeakShape); err != nil {
		return model.User{}, err
	}
	user, ok, err := u.Users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	user.Role = req.Role
	user.Email = req.Email
	if user, err = u.Users.Update(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	if err := u.Auths.SetCredential(ctx, user.ID, req.BeakShape); err != nil {
		return model.User{}, fmt.Errorf("set credential: %w", err)
	}
	if err := u.Commit(ctx); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func DeleteUser(ctx context.Context, u *uow.UnitOfWork, id string) error {
	user, ok, err := u.Users.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err := u.Users.Delete(ctx, user); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := u.Auths.DeleteByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return u.Commit(ctx)
}

// AuthenticateUser resolves a credential to its user. An unknown
// credential, or one whose user is gone, is reported as not found.
func AuthenticateUser(ctx context.Context, u *uow.UnitOfWork, beakShape string) (model.User, bool, error) {
	if strings.TrimSpace(beakShape) == "" {
		return model.User{}, false, nil
	}
	userID, ok, err := u.Auths.GetUserIDByCredential(ctx, beakShape)
	if err != nil || !ok {
		return model.User{}, false, err
	}
	return u.Users.GetByID(ctx, userID)
}
