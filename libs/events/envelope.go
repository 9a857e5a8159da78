package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

var ErrMalformed = errors.New("malformed event envelope")

// Envelope is the JSON wire format of every event.
type Envelope struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Encode wraps e in a fresh envelope and serializes it.
func (r *Registry) Encode(e Event) (Envelope, []byte, error) {
	id, ok := r.Lookup(e)
	if !ok {
		return Envelope{}, nil, fmt.Errorf("%w: %T", ErrUnregistered, e)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("marshal %s: %w", id, err)
	}
	env := Envelope{
		ID:      uuid.NewString(),
		Name:    id.Name,
		Version: id.Version,
		Data:    data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("marshal envelope %s: %w", id, err)
	}
	return env, raw, nil
}

// Decode parses raw and rebuilds the registered event value. An unknown
// (name, version) yields ErrUnregistered with the envelope still filled in
// so callers can log it.
func (r *Registry) Decode(raw []byte) (Envelope, Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Name == "" {
		return env, nil, fmt.Errorf("%w: missing name", ErrMalformed)
	}
	t, ok := r.Resolve(env.Name, env.Version)
	if !ok {
		return env, nil, fmt.Errorf("%w: %s.%d", ErrUnregistered, env.Name, env.Version)
	}
	ptr := reflect.New(t)
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ptr.Interface()); err != nil {
			return env, nil, fmt.Errorf("%w: data of %s.%d: %v", ErrMalformed, env.Name, env.Version, err)
		}
	}
	evt, ok := ptr.Elem().Interface().(Event)
	if !ok {
		return env, nil, fmt.Errorf("%w: %s does not implement Event", ErrMalformed, t)
	}
	return env, evt, nil
}
