package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/md-rashed-zaman/tasktracker/libs/broker"
	"github.com/md-rashed-zaman/tasktracker/libs/broker/mocks"
	"github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type itemCreated struct{ ID string }

func (e itemCreated) AggregateID() string { return e.ID }

type itemMoved struct{ ID string }

func (e itemMoved) AggregateID() string { return e.ID }

type moveRequested struct{ By string }

func (e moveRequested) AggregateID() string { return e.By }

type recordingSender struct {
	sent   []events.Event
	failAt int
}

func (s *recordingSender) Send(_ context.Context, e events.Event) error {
	if s.failAt > 0 && len(s.sent)+1 == s.failAt {
		return errors.New("broker unavailable")
	}
	s.sent = append(s.sent, e)
	return nil
}

func TestCommitOrder(t *testing.T) {
	var first, second events.Buffer
	sender := &recordingSender{}
	w := New(sender, nil, &first, &second)

	w.Add(moveRequested{By: "u1"})
	second.Append(itemMoved{ID: "b"})
	first.Append(itemCreated{ID: "a1"})
	first.Append(itemCreated{ID: "a2"})

	require.NoError(t, w.Commit(context.Background()))
	assert.Equal(t, []events.Event{
		itemCreated{ID: "a1"},
		itemCreated{ID: "a2"},
		itemMoved{ID: "b"},
		moveRequested{By: "u1"},
	}, sender.sent)
	assert.Zero(t, first.Len())
	assert.Zero(t, second.Len())
	assert.Empty(t, w.Pending())
}

func TestCommitIsSingleUse(t *testing.T) {
	sender := &recordingSender{}
	w := New(sender, nil)
	w.Add(itemCreated{ID: "a"})

	require.NoError(t, w.Commit(context.Background()))
	require.ErrorIs(t, w.Commit(context.Background()), ErrCommitted)
	assert.Len(t, sender.sent, 1)
}

func TestCommitWithNothingPending(t *testing.T) {
	sender := &recordingSender{}
	require.NoError(t, New(sender, nil).Commit(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestCommitStopsAtFirstFailure(t *testing.T) {
	var repo events.Buffer
	repo.Append(itemCreated{ID: "a"})
	repo.Append(itemCreated{ID: "b"})
	sender := &recordingSender{failAt: 2}
	w := New(sender, nil, &repo)
	w.Add(moveRequested{By: "u"})

	err := w.Commit(context.Background())
	require.ErrorIs(t, err, ErrPublish)
	assert.Equal(t, []events.Event{itemCreated{ID: "a"}}, sender.sent)
	// Nothing is dropped from the buffers before its publish attempt.
	assert.Equal(t, 2, repo.Len())
}

func TestCloseDiscardsUncommitted(t *testing.T) {
	var repo events.Buffer
	sender := &recordingSender{}
	w := New(sender, nil, &repo)
	repo.Append(itemCreated{ID: "a"})
	w.Add(moveRequested{By: "u"})

	w.Close()
	assert.Zero(t, repo.Len())
	require.ErrorIs(t, w.Commit(context.Background()), ErrClosed)
	assert.Empty(t, sender.sent)
	w.Close()
}

func TestCommitThroughBus(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)

	registry := events.NewRegistry()
	registry.MustRegister("Item.ItemCreated", 1, itemCreated{})
	registry.MustRegister("Item.ItemMoved", 1, itemMoved{})
	registry.MustRegister("Item.MoveRequested", 1, moveRequested{})

	subject := func(want string) gomock.Matcher {
		return gomock.Cond(func(m broker.Message) bool { return m.Subject == want })
	}
	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any(), subject("Item.ItemCreated.1")).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), subject("Item.ItemMoved.1")).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), subject("Item.MoveRequested.1")).Return(errors.New("nats: timeout")),
	)

	var repo events.Buffer
	w := New(events.NewBus(publisher, registry, nil), nil, &repo)
	repo.Append(itemCreated{ID: "a"})
	repo.Append(itemMoved{ID: "a"})
	w.Add(moveRequested{By: "u"})

	err := w.Commit(context.Background())
	require.ErrorIs(t, err, ErrPublish)
	assert.Contains(t, err.Error(), "event 3 of 3")
}
