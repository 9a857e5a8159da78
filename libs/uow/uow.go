// Package uow collects the domain events of one business operation and
// publishes them once the operation's writes are done.
//
// Repository writes happen immediately, as side effects of repository
// calls; only publishing is deferred to Commit. A failure before Commit
// therefore leaves the store mutated and publishes nothing, and a publish
// failure inside Commit does not undo earlier writes.
package uow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/tasktracker/libs/events"
)

var (
	ErrCommitted = errors.New("unit of work already committed")
	ErrClosed    = errors.New("unit of work closed")
	ErrPublish   = errors.New("publish failed")
)

// Sender publishes one event and waits for the broker to accept it.
type Sender interface {
	Send(ctx context.Context, e events.Event) error
}

// Work is a single-use event collector. Service-specific units of work
// embed it next to their repositories.
type Work struct {
	sender    Sender
	logger    *slog.Logger
	sources   []*events.Buffer
	own       events.Buffer
	committed bool
	closed    bool
}

// New binds sender and the repository buffers. Buffers are flushed in the
// order given here, before any event added with Add.
func New(sender Sender, logger *slog.Logger, sources ...*events.Buffer) *Work {
	if logger == nil {
		logger = slog.Default()
	}
	return &Work{sender: sender, logger: logger, sources: sources}
}

// Add queues an event that is not tied to a single repository write.
func (w *Work) Add(e events.Event) {
	w.own.Append(e)
}

// Pending returns the events Commit would publish, in publish order.
func (w *Work) Pending() []events.Event {
	var out []events.Event
	for _, src := range w.sources {
		out = append(out, src.Events()...)
	}
	return append(out, w.own.Events()...)
}

// Commit publishes every pending event sequentially. It stops at the first
// publish failure and returns an error wrapping ErrPublish; events already
// published stay published. Commit may only be called once.
func (w *Work) Commit(ctx context.Context) error {
	if w.closed {
		return ErrClosed
	}
	if w.committed {
		return ErrCommitted
	}
	w.committed = true

	pending := w.Pending()
	for i, e := range pending {
		if err := w.sender.Send(ctx, e); err != nil {
			w.logger.Error("unit of work publish failed; store writes are not rolled back",
				"err", err,
				"event", fmt.Sprintf("%T", e),
				"published", i,
				"pending", len(pending)-i,
			)
			return fmt.Errorf("%w: event %d of %d: %w", ErrPublish, i+1, len(pending), err)
		}
	}
	for _, src := range w.sources {
		src.Clear()
	}
	w.own.Clear()
	return nil
}

// Close ends the unit's scope. Events still buffered are discarded.
func (w *Work) Close() {
	if w.closed {
		return
	}
	w.closed = true
	if n := len(w.Pending()); n > 0 {
		w.logger.Debug("unit of work closed with unpublished events", "discarded", n, "committed", w.committed)
	}
	for _, src := range w.sources {
		src.Clear()
	}
	w.own.Clear()
}
