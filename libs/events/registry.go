package events

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

var (
	ErrDuplicate    = errors.New("event already registered")
	ErrInvalid      = errors.New("invalid event registration")
	ErrUnregistered = errors.New("event not registered")
)

// Registry is built once during start-up and only read afterwards, so it
// needs no locking once the process starts serving.
type Registry struct {
	byIdentity map[Identity]reflect.Type
	byType     map[reflect.Type]Identity
	topics     map[reflect.Type]string
}

func NewRegistry() *Registry {
	return &Registry{
		byIdentity: map[Identity]reflect.Type{},
		byType:     map[reflect.Type]Identity{},
		topics:     map[reflect.Type]string{},
	}
}

// Register binds the type of prototype to (name, version). The prototype
// must be a struct value, not a pointer.
func (r *Registry) Register(name string, version int, prototype Event) error {
	if name == "" || version < 1 {
		return fmt.Errorf("%w: name %q version %d", ErrInvalid, name, version)
	}
	if prototype == nil {
		return fmt.Errorf("%w: nil prototype for %s", ErrInvalid, name)
	}
	t := reflect.TypeOf(prototype)
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s must be a struct, got %s", ErrInvalid, name, t)
	}
	id := Identity{Name: name, Version: version}
	if prev, ok := r.byIdentity[id]; ok {
		return fmt.Errorf("%w: %s already bound to %s", ErrDuplicate, id, prev)
	}
	if prev, ok := r.byType[t]; ok {
		return fmt.Errorf("%w: %s already bound to %s", ErrDuplicate, t, prev)
	}
	r.byIdentity[id] = t
	r.byType[t] = id
	r.topics[t] = id.Topic()
	return nil
}

// MustRegister is Register for start-up code; a bad registration is a
// configuration error and panics.
func (r *Registry) MustRegister(name string, version int, prototype Event) {
	if err := r.Register(name, version, prototype); err != nil {
		panic(err)
	}
}

// Resolve returns the type registered under (name, version).
func (r *Registry) Resolve(name string, version int) (reflect.Type, bool) {
	t, ok := r.byIdentity[Identity{Name: name, Version: version}]
	return t, ok
}

// Lookup returns the identity of e's type.
func (r *Registry) Lookup(e Event) (Identity, bool) {
	id, ok := r.byType[reflect.TypeOf(e)]
	return id, ok
}

// IdentityFor panics when e's type was never registered.
func (r *Registry) IdentityFor(e Event) Identity {
	id, ok := r.Lookup(e)
	if !ok {
		panic(fmt.Sprintf("events: %T is not registered", e))
	}
	return id
}

// TopicFor panics when e's type was never registered.
func (r *Registry) TopicFor(e Event) string {
	topic, ok := r.topics[reflect.TypeOf(e)]
	if !ok {
		panic(fmt.Sprintf("events: %T is not registered", e))
	}
	return topic
}

// TopicOf returns the topic registered for type t.
func (r *Registry) TopicOf(t reflect.Type) (string, bool) {
	topic, ok := r.topics[t]
	return topic, ok
}

// Subjects returns every registered topic, sorted.
func (r *Registry) Subjects() []string {
	out := make([]string, 0, len(r.topics))
	for _, topic := range r.topics {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}
