// Package events declares the events auth-service publishes.
package events

import (
	"github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/model"
)

type UserCreated struct {
	PublicID string     `json:"public_id"`
	Role     model.Role `json:"role"`
	Email    string     `json:"email"`
}

func (e UserCreated) AggregateID() string { return e.PublicID }

type UserUpdated struct {
	PublicID string     `json:"public_id"`
	Role     model.Role `json:"role"`
	Email    string     `json:"email"`
}

func (e UserUpdated) AggregateID() string { return e.PublicID }

type UserDeleted struct {
	PublicID string `json:"public_id"`
}

func (e UserDeleted) AggregateID() string { return e.PublicID }

// NewRegistry returns a registry holding every auth-service event.
func NewRegistry() *events.Registry {
	reg := events.NewRegistry()
	reg.MustRegister("User.UserCreated", 1, UserCreated{})
	reg.MustRegister("User.UserUpdated", 1, UserUpdated{})
	reg.MustRegister("User.UserDeleted", 1, UserDeleted{})
	return reg
}
