// Package uow wires the auth-service repositories into a unit of work.
package uow

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"github.com/md-rashed-zaman/tasktracker/libs/uow"
	"github.com/md-rashed-zaman/tasktracker/services/auth-service/internal/storage"
)

// UnitOfWork publishes user events first, then anything added directly.
type UnitOfWork struct {
	*uow.Work
	Users *storage.UserRepository
	Auths *storage.AuthRepository
}

// Factory builds one UnitOfWork per request.
type Factory struct {
	Store  func(context.Context) (docstore.Store, error)
	Sender uow.Sender
	Pepper []byte
	Logger *slog.Logger
}

func (f *Factory) New(ctx context.Context) (*UnitOfWork, error) {
	store, err := f.Store(ctx)
	if err != nil {
		return nil, err
	}
	users := storage.NewUserRepository(store)
	auths := storage.NewAuthRepository(store, f.Pepper)
	return &UnitOfWork{
		Work:  uow.New(f.Sender, f.Logger, users.Events()),
		Users: users,
		Auths: auths,
	}, nil
}
