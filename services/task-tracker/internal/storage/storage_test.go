package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore/memstore"
	libevents "github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/events"
	"github.com/md-rashed-zaman/tasktracker/services/task-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRepositoryBuffersFullState(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(memstore.New())

	task, err := repo.Create(ctx, CreateTaskRequest{UserID: "u1", Description: "feed", JiraID: "POPUG-7"})
	require.NoError(t, err)
	task.Status = model.TaskClosed
	_, err = repo.Update(ctx, task)
	require.NoError(t, err)

	assert.Equal(t, []libevents.Event{
		events.TaskCreated{PublicID: task.PublicID, UserID: "u1", Status: model.TaskOpen, Description: "feed", JiraID: "POPUG-7"},
		events.TaskUpdated{PublicID: task.PublicID, UserID: "u1", Status: model.TaskClosed, Description: "feed", JiraID: "POPUG-7"},
	}, repo.Events().Events())

	stored, ok, err := repo.GetByPublicID(ctx, task.PublicID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.TaskClosed, stored.Status)
}

func TestTaskRepositoryUpdateMissing(t *testing.T) {
	repo := NewTaskRepository(memstore.New())
	_, err := repo.Update(context.Background(), model.Task{PublicID: "ghost"})
	require.Error(t, err)
	assert.Zero(t, repo.Events().Len())
}

func TestTaskRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(memstore.New())
	for _, owner := range []string{"a", "a", "b"} {
		_, err := repo.Create(ctx, CreateTaskRequest{UserID: owner, Description: "x"})
		require.NoError(t, err)
	}
	all, err := repo.List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repo.List(ctx, model.TaskFilter{Status: model.TaskOpen, UserID: "a"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	closed, err := repo.List(ctx, model.TaskFilter{Status: model.TaskClosed})
	require.NoError(t, err)
	assert.Empty(t, closed)
}

func TestUserRepositoryGetRandomByRole(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(memstore.New())

	_, ok, err := repo.GetRandom(ctx, model.AssignableRoles)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, u := range []model.User{
		{PublicID: "adm", Role: model.RoleAdmin},
		{PublicID: "acc", Role: model.RoleAccountant},
	} {
		_, err := repo.Upsert(ctx, u)
		require.NoError(t, err)
	}
	for range 20 {
		u, ok, err := repo.GetRandom(ctx, model.AssignableRoles)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "acc", u.PublicID)
	}

	seen := map[string]bool{}
	for range 200 {
		u, _, err := repo.GetRandom(ctx, nil)
		require.NoError(t, err)
		seen[u.PublicID] = true
	}
	assert.Len(t, seen, 2)
}

func TestUserRepositoryUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := NewUserRepository(store)

	_, err := repo.Upsert(ctx, model.User{PublicID: "u1", Role: model.RoleManager, Email: "a@example.com"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, model.User{PublicID: "u1", Role: model.RoleAdmin, Email: "b@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len(usersCollection))

	u, ok, err := repo.GetByPublicID(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.RoleAdmin, u.Role)

	require.NoError(t, repo.Delete(ctx, "u1"))
	require.NoError(t, repo.Delete(ctx, "u1"))
	assert.Zero(t, store.Len(usersCollection))
}

func TestUserRepositoryConcurrentUpsertKeepsOneDocument(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := NewUserRepository(store)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Upsert(ctx, model.User{PublicID: "p1", Role: model.RoleAccountant, Email: fmt.Sprintf("w%d@example.com", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.Len(usersCollection))
	d, ok, err := store.FindOne(ctx, usersCollection, docstore.Filter{docstore.IDField: "p1"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p1", d.ID)
}

func TestUserRepositoryStoreFailure(t *testing.T) {
	store := memstore.New()
	boom := errors.New("connection reset")
	store.FailWith = boom

	_, _, err := NewUserRepository(store).GetByPublicID(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}
