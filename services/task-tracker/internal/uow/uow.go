// Package uow wires the task-tracker repositories into a unit of work.
package uow

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"github.com/md-rashed-zaman/tasktracker/libs/uow"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/storage"
)

// UnitOfWork publishes task repository events first, then events added
// directly by the service.
type UnitOfWork struct {
	*uow.Work
	Users *storage.UserRepository
	Tasks *storage.TaskRepository
}

type Factory struct {
	Store  func(context.Context) (docstore.Store, error)
	Sender uow.Sender
	Logger *slog.Logger
}

func (f *Factory) New(ctx context.Context) (*UnitOfWork, error) {
	store, err := f.Store(ctx)
	if err != nil {
		return nil, err
	}
	tasks := storage.NewTaskRepository(store)
	return &UnitOfWork{
		Work:  uow.New(f.Sender, f.Logger, tasks.Events()),
		Users: storage.NewUserRepository(store),
		Tasks: tasks,
	}, nil
}
