// Package events declares the events task-tracker publishes and the user
// events it consumes from auth-service.
package events

import (
	"github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
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

// TaskCreated and TaskUpdated carry the full task state after a write.
type TaskCreated struct {
	PublicID    string           `json:"public_id"`
	UserID      string           `json:"user_id"`
	Status      model.TaskStatus `json:"status"`
	Description string           `json:"description"`
	JiraID      string           `json:"jira_id,omitempty"`
}

func (e TaskCreated) AggregateID() string { return e.PublicID }

type TaskUpdated struct {
	PublicID    string           `json:"public_id"`
	UserID      string           `json:"user_id"`
	Status      model.TaskStatus `json:"status"`
	Description string           `json:"description"`
	JiraID      string           `json:"jira_id,omitempty"`
}

func (e TaskUpdated) AggregateID() string { return e.PublicID }

type TaskAdded struct {
	PublicID    string           `json:"public_id"`
	UserID      string           `json:"user_id"`
	Status      model.TaskStatus `json:"status"`
	Description string           `json:"description"`
}

func (e TaskAdded) AggregateID() string { return e.PublicID }

type TaskAssigned struct {
	PublicID string `json:"public_id"`
	UserID   string `json:"user_id"`
}

func (e TaskAssigned) AggregateID() string { return e.PublicID }

type TaskClosed struct {
	PublicID string `json:"public_id"`
}

func (e TaskClosed) AggregateID() string { return e.PublicID }

// TaskShuffleRequested names the admin who asked for the shuffle.
type TaskShuffleRequested struct {
	UserID string `json:"user_id"`
}

func (e TaskShuffleRequested) AggregateID() string { return e.UserID }

func NewRegistry() *events.Registry {
	reg := events.NewRegistry()
	reg.MustRegister("User.UserCreated", 1, UserCreated{})
	reg.MustRegister("User.UserUpdated", 1, UserUpdated{})
	reg.MustRegister("User.UserDeleted", 1, UserDeleted{})
	reg.MustRegister("Task.TaskCreated", 1, TaskCreated{})
	reg.MustRegister("Task.TaskUpdated", 1, TaskUpdated{})
	reg.MustRegister("Task.TaskAdded", 1, TaskAdded{})
	reg.MustRegister("Task.TaskAssigned", 1, TaskAssigned{})
	reg.MustRegister("Task.TaskClosed", 1, TaskClosed{})
	reg.MustRegister("Task.TaskShuffleRequested", 1, TaskShuffleRequested{})
	return reg
}
