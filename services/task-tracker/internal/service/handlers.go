package service

import (
	"github.com/md-rashed-zaman/tasktracker/libs/consumer"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/uow"
)

// Handlers is the consumer's event handler table.
func Handlers() (*consumer.Table[*uow.UnitOfWork], error) {
	return consumer.NewTable(
		consumer.On(HandleUserUpsert[events.UserCreated]),
		consumer.On(HandleUserUpsert[events.UserUpdated]),
		consumer.On(HandleUserDelete),
		consumer.On(ShuffleTasks),
	)
}
