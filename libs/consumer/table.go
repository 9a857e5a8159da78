package consumer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	goruntime "runtime"
	"sort"
	"strings"

	"github.com/md-rashed-zaman/tasktracker/libs/events"
)

// Unit is the per-invocation unit of work handed to handlers. The consumer
// closes it once the handler returns.
type Unit interface {
	Close()
}

// HandlerFunc handles one decoded event inside a fresh unit of work.
type HandlerFunc[U Unit] func(ctx context.Context, u U, e events.Event) error

// Registration binds a handler to one event type.
type Registration[U Unit] struct {
	typ  reflect.Type
	name string
	fn   HandlerFunc[U]
}

func (r Registration[U]) Name() string { return r.name }

// On adapts a handler typed on a concrete event struct E.
func On[E events.Event, U Unit](fn func(ctx context.Context, u U, e E) error) Registration[U] {
	var zero E
	return Registration[U]{
		typ:  reflect.TypeOf(zero),
		name: funcName(fn),
		fn: func(ctx context.Context, u U, e events.Event) error {
			typed, ok := e.(E)
			if !ok {
				return fmt.Errorf("handler for %T received %T", zero, e)
			}
			return fn(ctx, u, typed)
		},
	}
}

// Table maps event types to their ordered handler lists. It is immutable
// once built.
type Table[U Unit] struct {
	handlers map[reflect.Type][]Registration[U]
}

// NewTable builds a table from an explicit registration list. Handlers for
// the same type run in the order they are listed.
func NewTable[U Unit](regs ...Registration[U]) (*Table[U], error) {
	t := &Table[U]{handlers: map[reflect.Type][]Registration[U]{}}
	for _, reg := range regs {
		if reg.typ == nil || reg.fn == nil {
			return nil, errors.New("consumer: registration needs a concrete event type and a handler")
		}
		t.handlers[reg.typ] = append(t.handlers[reg.typ], reg)
	}
	return t, nil
}

// For returns the handlers registered for e's type.
func (t *Table[U]) For(e events.Event) []Registration[U] {
	return t.handlers[reflect.TypeOf(e)]
}

// Subjects returns the topics of every event type that has handlers. Each
// type must be known to registry.
func (t *Table[U]) Subjects(registry *events.Registry) ([]string, error) {
	out := make([]string, 0, len(t.handlers))
	for typ := range t.handlers {
		topic, ok := registry.TopicOf(typ)
		if !ok {
			return nil, fmt.Errorf("%w: %s has handlers but no topic", events.ErrUnregistered, typ)
		}
		out = append(out, topic)
	}
	sort.Strings(out)
	return out, nil
}

func funcName(fn any) string {
	f := goruntime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "handler"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
