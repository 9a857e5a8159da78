package service

import (
	"context"
	"errors"
	"testing"

	"github.com/md-rashed-zaman/tasktracker/libs/broker"
	"github.com/md-rashed-zaman/tasktracker/libs/broker/memory"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore/memstore"
	libevents "github.com/md-rashed-zaman/tasktracker/libs/events"
	libuow "github.com/md-rashed-zaman/tasktracker/libs/uow"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/model"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/uow"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type UserServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memstore.Store
	broker  *memory.Broker
	factory *uow.Factory
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}

func (s *UserServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New()
	s.broker = memory.New()
	s.factory = &uow.Factory{
		Store:  func(context.Context) (docstore.Store, error) { return s.store, nil },
		Sender: libevents.NewBus(s.broker, events.NewRegistry(), nil),
		Pepper: []byte("pepper"),
	}
}

func (s *UserServiceSuite) unit() *uow.UnitOfWork {
	u, err := s.factory.New(s.ctx)
	s.Require().NoError(err)
	s.T().Cleanup(u.Close)
	return u
}

func (s *UserServiceSuite) createUser(role model.Role, email, beak string) model.User {
	user, err := CreateUser(s.ctx, s.unit(), CreateUserRequest{Role: role, Email: email, BeakShape: beak})
	s.Require().NoError(err)
	return user
}

func (s *UserServiceSuite) subjects() []string {
	var out []string
	for _, m := range s.broker.Published() {
		out = append(out, m.Subject)
	}
	return out
}

func (s *UserServiceSuite) TestCreateUserPublishesUserCreated() {
	user := s.createUser(model.RoleManager, "m@example.com", "hooked")

	s.Len(user.PublicID, 32)
	s.NotEqual(user.ID, user.PublicID)

	published := s.broker.Published()
	s.Require().Len(published, 1)
	s.Equal("User.UserCreated.1", published[0].Subject)
	s.Equal(user.PublicID, published[0].Key)
	s.Contains(string(published[0].Data), `"role":"manager"`)
	s.Contains(string(published[0].Data), user.PublicID)
	s.NotContains(string(published[0].Data), "hooked")
}

func (s *UserServiceSuite) TestCreateUserValidation() {
	for _, req := range []CreateUserRequest{
		{Role: "owner", Email: "a@b", BeakShape: "x"},
		{Role: model.RoleAdmin, Email: "nope", BeakShape: "x"},
		{Role: model.RoleAdmin, Email: "a@b", BeakShape: " "},
	} {
		_, err := CreateUser(s.ctx, s.unit(), req)
		s.ErrorIs(err, ErrValidation)
	}
	s.Zero(s.store.Len("user"))
	s.Empty(s.broker.Published())
}

func (s *UserServiceSuite) TestUpdateUser() {
	user := s.createUser(model.RoleManager, "m@example.com", "hooked")

	updated, err := UpdateUser(s.ctx, s.unit(), user.ID, UpdateUserRequest{
		Role: model.RoleAccountant, Email: "acc@example.com", BeakShape: "curved",
	})
	s.Require().NoError(err)
	s.Equal(model.RoleAccountant, updated.Role)
	s.Equal(user.PublicID, updated.PublicID)
	s.Equal([]string{"User.UserCreated.1", "User.UserUpdated.1"}, s.subjects())

	_, ok, err := AuthenticateUser(s.ctx, s.unit(), "hooked")
	s.Require().NoError(err)
	s.False(ok, "old credential replaced")

	got, ok, err := AuthenticateUser(s.ctx, s.unit(), "curved")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(updated, got)
}

func (s *UserServiceSuite) TestUpdateMissingUser() {
	_, err := UpdateUser(s.ctx, s.unit(), "missing", UpdateUserRequest{
		Role: model.RoleAdmin, Email: "a@b", BeakShape: "x",
	})
	s.ErrorIs(err, ErrNotFound)
	s.Empty(s.broker.Published())
}

func (s *UserServiceSuite) TestDeleteUser() {
	user := s.createUser(model.RoleAdmin, "a@example.com", "flat")

	s.Require().NoError(DeleteUser(s.ctx, s.unit(), user.ID))
	s.Equal([]string{"User.UserCreated.1", "User.UserDeleted.1"}, s.subjects())

	_, ok, err := GetUser(s.ctx, s.unit(), user.ID)
	s.Require().NoError(err)
	s.False(ok)
	s.Zero(s.store.Len("auth"))

	s.ErrorIs(DeleteUser(s.ctx, s.unit(), user.ID), ErrNotFound)
}

func (s *UserServiceSuite) TestAuthenticateUnknownCredential() {
	_, ok, err := AuthenticateUser(s.ctx, s.unit(), "unknown")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *UserServiceSuite) TestPublishFailureSurfacesAfterWrite() {
	s.broker.PublishHook = func(broker.Message) error { return errors.New("nats down") }

	_, err := CreateUser(s.ctx, s.unit(), CreateUserRequest{Role: model.RoleManager, Email: "m@x", BeakShape: "b"})
	s.ErrorIs(err, libuow.ErrPublish)
	s.Equal(1, s.store.Len("user"), "writes are not rolled back")
}

func TestStoreFailureIsPropagated(t *testing.T) {
	store := memstore.New()
	boom := errors.New("store down")
	store.FailWith = boom
	f := &uow.Factory{
		Store:  func(context.Context) (docstore.Store, error) { return store, nil },
		Sender: libevents.NewBus(memory.New(), events.NewRegistry(), nil),
	}
	u, err := f.New(context.Background())
	require.NoError(t, err)
	defer u.Close()

	_, err = CreateUser(context.Background(), u, CreateUserRequest{Role: model.RoleManager, Email: "m@x", BeakShape: "b"})
	require.ErrorIs(t, err, boom)
}
