// Package service holds the task-tracker use cases and the handlers it
// runs for consumed events.
package service

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	// ErrNoAssignee means no user holds an assignable role.
	ErrNoAssignee = errors.New("no assignable user")
)
