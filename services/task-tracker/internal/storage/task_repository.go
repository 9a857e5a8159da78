package storage

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	libevents "github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
)

const tasksCollection = "task"

type CreateTaskRequest struct {
	UserID      string
	Description string
	JiraID      string
}

// TaskRepository buffers TaskCreated and TaskUpdated for every write.
type TaskRepository struct {
	store  docstore.Store
	events libevents.Buffer
}

func NewTaskRepository(store docstore.Store) *TaskRepository {
	return &TaskRepository{store: store}
}

func (r *TaskRepository) Events() *libevents.Buffer { return &r.events }

func (r *TaskRepository) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	f := docstore.Filter{}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	if filter.UserID != "" {
		f["user_id"] = filter.UserID
	}
	docs, err := r.store.Find(ctx, tasksCollection, f)
	if err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(docs))
	for _, d := range docs {
		var t model.Task
		if err := d.Decode(&t); err != nil {
			return nil, fmt.Errorf("task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *TaskRepository) GetByPublicID(ctx context.Context, publicID string) (model.Task, bool, error) {
	_, task, ok, err := r.find(ctx, publicID)
	return task, ok, err
}

func (r *TaskRepository) Create(ctx context.Context, req CreateTaskRequest) (model.Task, error) {
	id := uuid.New()
	task := model.Task{
		PublicID:    hex.EncodeToString(id[:]),
		UserID:      req.UserID,
		Status:      model.TaskOpen,
		Description: req.Description,
		JiraID:      req.JiraID,
	}
	if _, err := r.store.Insert(ctx, tasksCollection, task); err != nil {
		return model.Task{}, err
	}
	r.events.Append(events.TaskCreated{
		PublicID:    task.PublicID,
		UserID:      task.UserID,
		Status:      task.Status,
		Description: task.Description,
		JiraID:      task.JiraID,
	})
	return task, nil
}

// Update writes the whole task, status included.
func (r *TaskRepository) Update(ctx context.Context, task model.Task) (model.Task, error) {
	storeID, _, ok, err := r.find(ctx, task.PublicID)
	if err != nil {
		return model.Task{}, err
	}
	if !ok {
		return model.Task{}, fmt.Errorf("task %s does not exist", task.PublicID)
	}
	if err := r.store.Replace(ctx, tasksCollection, storeID, task); err != nil {
		return model.Task{}, err
	}
	r.events.Append(events.TaskUpdated{
		PublicID:    task.PublicID,
		UserID:      task.UserID,
		Status:      task.Status,
		Description: task.Description,
		JiraID:      task.JiraID,
	})
	return task, nil
}

func (r *TaskRepository) find(ctx context.Context, publicID string) (string, model.Task, bool, error) {
	d, ok, err := r.store.FindOne(ctx, tasksCollection, docstore.Filter{"public_id": publicID})
	if err != nil || !ok {
		return "", model.Task{}, false, err
	}
	var t model.Task
	if err := d.Decode(&t); err != nil {
		return "", model.Task{}, false, fmt.Errorf("task %s: %w", d.ID, err)
	}
	return d.ID, t, true, nil
}
