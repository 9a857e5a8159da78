package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/storage"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/uow"
)

type CreateTaskRequest struct {
	Description string `json:"description"`
	JiraID      string `json:"jira_id,omitempty"`
}

// Validate rejects an empty description and one that embeds a Jira id in
// brackets; the id has its own field.
func (r CreateTaskRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Description) == "":
		return fmt.Errorf("%w: description is required", ErrValidation)
	case strings.ContainsAny(r.Description, "[]"):
		return fmt.Errorf("%w: description must not contain a Jira id", ErrValidation)
	}
	return nil
}

func GetTasks(ctx context.Context, u *uow.UnitOfWork, filter model.TaskFilter) ([]model.Task, error) {
	return u.Tasks.List(ctx, filter)
}

func CreateTask(ctx context.Context, u *uow.UnitOfWork, req CreateTaskRequest) (model.Task, error) {
	if err := req.Validate(); err != nil {
		return model.Task{}, err
	}
	assignee, err := randomAssignee(ctx, u)
	if err != nil {
		return model.Task{}, err
	}
	task, err := u.Tasks.Create(ctx, storage.CreateTaskRequest{
		UserID:      assignee.PublicID,
		Description: req.Description,
		JiraID:      req.JiraID,
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	u.Add(events.TaskAdded{
		PublicID:    task.PublicID,
		UserID:      task.UserID,
		Status:      task.Status,
		Description: task.Description,
	})
	if err := u.Commit(ctx); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func RequestTaskShuffle(ctx context.Context, u *uow.UnitOfWork, requesterPublicID string) error {
	u.Add(events.TaskShuffleRequested{UserID: requesterPublicID})
	return u.Commit(ctx)
}

// ShuffleTasks reassigns every open task to a random assignable user and
// commits once at the end.
func ShuffleTasks(ctx context.Context, u *uow.UnitOfWork, _ events.TaskShuffleRequested) error {
	tasks, err := u.Tasks.List(ctx, model.TaskFilter{Status: model.TaskOpen})
	if err != nil {
		return fmt.Errorf("list open tasks: %w", err)
	}
	for _, task := range tasks {
		assignee, err := randomAssignee(ctx, u)
		if err != nil {
			return err
		}
		task.UserID = assignee.PublicID
		u.Add(events.TaskAssigned{PublicID: task.PublicID, UserID: assignee.PublicID})
		if _, err := u.Tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("reassign task %s: %w", task.PublicID, err)
		}
	}
	return u.Commit(ctx)
}

// CloseTask closes a task on behalf of its assignee. Anyone else is
// refused before anything is written.
func CloseTask(ctx context.Context, u *uow.UnitOfWork, requesterPublicID, taskPublicID string) (model.Task, error) {
	task, ok, err := u.Tasks.GetByPublicID(ctx, taskPublicID)
	if err != nil {
		return model.Task{}, fmt.Errorf("load task: %w", err)
	}
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", taskPublicID, ErrNotFound)
	}
	if task.UserID != requesterPublicID {
		return model.Task{}, fmt.Errorf("task %s is assigned to someone else: %w", taskPublicID, ErrForbidden)
	}

	task.Status = model.TaskClosed
	u.Add(events.TaskClosed{PublicID: task.PublicID})
	if task, err = u.Tasks.Update(ctx, task); err != nil {
		return model.Task{}, fmt.Errorf("close task: %w", err)
	}
	if err := u.Commit(ctx); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func randomAssignee(ctx context.Context, u *uow.UnitOfWork) (model.User, error) {
	user, ok, err := u.Users.GetRandom(ctx, model.AssignableRoles)
	if err != nil {
		return model.User{}, fmt.Errorf("pick assignee: %w", err)
	}
	if !ok {
		return model.User{}, ErrNoAssignee
	}
	return user, nil
}
