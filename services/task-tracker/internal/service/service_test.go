package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/tasktracker/libs/broker"
	"github.com/md-rashed-zaman/tasktracker/libs/broker/memory"
	"github.com/md-rashed-zaman/tasktracker/libs/consumer"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore/memstore"
	libevents "github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/libs/metrics"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/uow"
	"github.com/stretchr/testify/suite"
)

type TaskServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memstore.Store
	broker   *memory.Broker
	registry *libevents.Registry
	factory  *uow.Factory
}

func TestTaskServiceSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceSuite))
}

func (s *TaskServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New()
	s.broker = memory.New()
	s.registry = events.NewRegistry()
	s.factory = &uow.Factory{
		Store:  func(context.Context) (docstore.Store, error) { return s.store, nil },
		Sender: libevents.NewBus(s.broker, s.registry, nil),
	}
}

func (s *TaskServiceSuite) unit() *uow.UnitOfWork {
	u, err := s.factory.New(s.ctx)
	s.Require().NoError(err)
	s.T().Cleanup(u.Close)
	return u
}

func (s *TaskServiceSuite) addUser(publicID string, role model.Role) {
	s.Require().NoError(HandleUserUpsert(s.ctx, s.unit(), events.UserCreated{
		PublicID: publicID, Role: role, Email: publicID + "@example.com",
	}))
}

func (s *TaskServiceSuite) subjects() []string {
	var out []string
	for _, m := range s.broker.Published() {
		out = append(out, m.Subject)
	}
	return out
}

func (s *TaskServiceSuite) decode(m broker.Message) libevents.Event {
	_, e, err := s.registry.Decode(m.Data)
	s.Require().NoError(err)
	return e
}

func (s *TaskServiceSuite) TestCreateTaskNeverAssignsAdmin() {
	s.addUser("admin1", model.RoleAdmin)
	s.addUser("admin2", model.RoleAdmin)
	s.addUser("mgr", model.RoleManager)

	for range 25 {
		task, err := CreateTask(s.ctx, s.unit(), CreateTaskRequest{Description: "count the birds"})
		s.Require().NoError(err)
		s.Equal("mgr", task.UserID)
		s.Equal(model.TaskOpen, task.Status)
	}
}

func (s *TaskServiceSuite) TestCreateTaskPublishesCreatedThenAdded() {
	s.addUser("acc", model.RoleAccountant)

	task, err := CreateTask(s.ctx, s.unit(), CreateTaskRequest{Description: "audit", JiraID: "POPUG-1"})
	s.Require().NoError(err)
	s.Len(task.PublicID, 32)

	s.Equal([]string{"Task.TaskCreated.1", "Task.TaskAdded.1"}, s.subjects())
	published := s.broker.Published()
	s.Equal(events.TaskCreated{
		PublicID: task.PublicID, UserID: "acc", Status: model.TaskOpen, Description: "audit", JiraID: "POPUG-1",
	}, s.decode(published[0]))
	s.Equal(events.TaskAdded{
		PublicID: task.PublicID, UserID: "acc", Status: model.TaskOpen, Description: "audit",
	}, s.decode(published[1]))
}

func (s *TaskServiceSuite) TestCreateTaskWithoutAssignee() {
	s.addUser("admin", model.RoleAdmin)

	_, err := CreateTask(s.ctx, s.unit(), CreateTaskRequest{Description: "orphan"})
	s.ErrorIs(err, ErrNoAssignee)
	s.Zero(s.store.Len("task"))
	s.Empty(s.broker.Published())
}

func (s *TaskServiceSuite) TestCreateTaskValidation() {
	s.addUser("mgr", model.RoleManager)
	for _, desc := range []string{"", "  ", "[POPUG-1] feed", "feed ]"} {
		_, err := CreateTask(s.ctx, s.unit(), CreateTaskRequest{Description: desc})
		s.ErrorIs(err, ErrValidation, desc)
	}
	s.Zero(s.store.Len("task"))
}

func (s *TaskServiceSuite) TestCloseTaskByAssignee() {
	s.addUser("mgr", model.RoleManager)
	task, err := CreateTask(s.ctx, s.unit(), CreateTaskRequest{Description: "feed"})
	s.Require().NoError(err)

	closed, err := CloseTask(s.ctx, s.unit(), "mgr", task.PublicID)
	s.Require().NoError(err)
	s.Equal(model.TaskClosed, closed.Status)

	stored, ok, err := s.unit().Tasks.GetByPublicID(s.ctx, task.PublicID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(model.TaskClosed, stored.Status, "status is persisted")

	s.Equal([]string{
		"Task.TaskCreated.1", "Task.TaskAdded.1",
		"Task.TaskUpdated.1", "Task.TaskClosed.1",
	}, s.subjects())
	updated := s.decode(s.broker.Published()[2]).(events.TaskUpdated)
	s.Equal(model.TaskClosed, updated.Status)
}

func (s *TaskServiceSuite) TestCloseSomeoneElsesTaskIsRejectedBeforeWriting() {
	s.addUser("mgr", model.RoleManager)
	task, err := CreateTask(s.ctx, s.unit(), CreateTaskRequest{Description: "feed"})
	s.Require().NoError(err)
	before := len(s.broker.Published())

	_, err = CloseTask(s.ctx, s.unit(), "intruder", task.PublicID)
	s.ErrorIs(err, ErrForbidden)

	stored, _, err := s.unit().Tasks.GetByPublicID(s.ctx, task.PublicID)
	s.Require().NoError(err)
	s.Equal(model.TaskOpen, stored.Status)
	s.Len(s.broker.Published(), before)
}

func (s *TaskServiceSuite) TestCloseMissingTask() {
	_, err := CloseTask(s.ctx, s.unit(), "mgr", "nope")
	s.ErrorIs(err, ErrNotFound)
}

func (s *TaskServiceSuite) TestShuffleTasks() {
	s.addUser("mgr", model.RoleManager)
	for range 3 {
		_, err := CreateTask(s.ctx, s.unit(), CreateTaskRequest{Description: "feed"})
		s.Require().NoError(err)
	}
	tasks, err := GetTasks(s.ctx, s.unit(), model.TaskFilter{})
	s.Require().NoError(err)
	_, err = CloseTask(s.ctx, s.unit(), "mgr", tasks[0].PublicID)
	s.Require().NoError(err)

	s.addUser("acc", model.RoleAccountant)
	s.Require().NoError(HandleUserDelete(s.ctx, s.unit(), events.UserDeleted{PublicID: "mgr"}))
	published := len(s.broker.Published())

	s.Require().NoError(ShuffleTasks(s.ctx, s.unit(), events.TaskShuffleRequested{UserID: "admin"}))

	open, err := GetTasks(s.ctx, s.unit(), model.TaskFilter{Status: model.TaskOpen})
	s.Require().NoError(err)
	s.Len(open, 2)
	for _, task := range open {
		s.Equal("acc", task.UserID)
	}
	s.Equal([]string{
		"Task.TaskUpdated.1", "Task.TaskUpdated.1",
		"Task.TaskAssigned.1", "Task.TaskAssigned.1",
	}, s.subjects()[published:])
}

func (s *TaskServiceSuite) TestRequestTaskShuffle() {
	s.Require().NoError(RequestTaskShuffle(s.ctx, s.unit(), "admin1"))
	s.Equal([]string{"Task.TaskShuffleRequested.1"}, s.subjects())
	s.Equal(events.TaskShuffleRequested{UserID: "admin1"}, s.decode(s.broker.Published()[0]))
}

func (s *TaskServiceSuite) TestGetTasksFilters() {
	s.addUser("mgr", model.RoleManager)
	_, err := CreateTask(s.ctx, s.unit(), CreateTaskRequest{Description: "feed"})
	s.Require().NoError(err)

	mine, err := GetTasks(s.ctx, s.unit(), model.TaskFilter{Status: model.TaskOpen, UserID: "mgr"})
	s.Require().NoError(err)
	s.Len(mine, 1)

	theirs, err := GetTasks(s.ctx, s.unit(), model.TaskFilter{Status: model.TaskOpen, UserID: "other"})
	s.Require().NoError(err)
	s.Empty(theirs)
}

func (s *TaskServiceSuite) TestUserMirror() {
	s.addUser("u1", model.RoleManager)
	s.Require().NoError(HandleUserUpsert(s.ctx, s.unit(), events.UserUpdated{
		PublicID: "u1", Role: model.RoleAccountant, Email: "new@example.com",
	}))

	user, ok, err := GetUserByPublicID(s.ctx, s.unit(), "u1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(model.User{PublicID: "u1", Role: model.RoleAccountant, Email: "new@example.com"}, user)
	s.Equal(1, s.store.Len("user"))

	s.Require().NoError(HandleUserDelete(s.ctx, s.unit(), events.UserDeleted{PublicID: "u1"}))
	s.Require().NoError(HandleUserDelete(s.ctx, s.unit(), events.UserDeleted{PublicID: "never-seen"}))
	_, ok, err = GetUserByPublicID(s.ctx, s.unit(), "u1")
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(s.broker.Published(), "mirror writes publish nothing")
}

func (s *TaskServiceSuite) TestHandlerTableSubjects() {
	table, err := Handlers()
	s.Require().NoError(err)
	subjects, err := table.Subjects(s.registry)
	s.Require().NoError(err)
	s.Equal([]string{
		"Task.TaskShuffleRequested.1",
		"User.UserCreated.1",
		"User.UserDeleted.1",
		"User.UserUpdated.1",
	}, subjects)
}

func (s *TaskServiceSuite) TestConsumerAppliesAuthServiceEvents() {
	table, err := Handlers()
	s.Require().NoError(err)
	c := consumer.New(s.broker, s.registry, table, s.factory.New, slog.New(slog.DiscardHandler), nil, consumer.Config{
		Durable: "task-tracker",
		MaxWait: 20 * time.Millisecond,
	})

	// Published by auth-service with its own registry; same wire format.
	raw, err := json.Marshal(libevents.Envelope{
		ID:      "e1",
		Name:    "User.UserCreated",
		Version: 1,
		Data:    json.RawMessage(`{"public_id":"p1","role":"accountant","email":"p1@example.com"}`),
	})
	s.Require().NoError(err)
	s.Require().NoError(s.broker.Publish(s.ctx, broker.Message{Subject: "User.UserCreated.1", Data: raw}))

	subjects, err := table.Subjects(s.registry)
	s.Require().NoError(err)
	sub, err := s.broker.PullSubscribe(s.ctx, "task-tracker", subjects)
	s.Require().NoError(err)
	batch, err := sub.Fetch(s.ctx, 1, 50*time.Millisecond)
	s.Require().NoError(err)
	s.Require().Len(batch, 1)

	s.Equal(metrics.OutcomeHandled, c.Process(s.ctx, batch[0]))
	user, ok, err := GetUserByPublicID(s.ctx, s.unit(), "p1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(model.RoleAccountant, user.Role)
}
