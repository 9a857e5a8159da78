// Package docstore is a minimal document store: JSON documents grouped in
// named collections, addressed by an opaque store id and queried with
// equality or membership filters on top-level string fields.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// IDField addresses the store id in a Filter.
const IDField = "_id"

var ErrInvalidFilter = errors.New("invalid filter")

// Filter selects documents by top-level fields. A string value matches by
// equality, a []string value by membership. An empty filter matches every
// document in the collection.
type Filter map[string]any

// Validate reports values other than string or []string.
func (f Filter) Validate() error {
	for k, v := range f {
		if k == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidFilter)
		}
		switch v.(type) {
		case string, []string:
		default:
			return fmt.Errorf("%w: %s has unsupported value %T", ErrInvalidFilter, k, v)
		}
	}
	return nil
}

// Keys returns the filter fields in a stable order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Document is a stored body with its store id.
type Document struct {
	ID   string
	Body json.RawMessage
}

// Decode unmarshals the body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Store is implemented by pgstore and memstore. Read misses are reported
// through the boolean, never as an error.
type Store interface {
	FindOne(ctx context.Context, collection string, f Filter) (Document, bool, error)
	Find(ctx context.Context, collection string, f Filter) ([]Document, error)
	// Insert stores body under a fresh id and returns it.
	Insert(ctx context.Context, collection string, body any) (string, error)
	// Replace overwrites the document with id, creating it when missing.
	Replace(ctx context.Context, collection, id string, body any) error
	// Delete removes every matching document and reports how many.
	Delete(ctx context.Context, collection string, f Filter) (int64, error)
	// Sample returns one matching document chosen at random.
	Sample(ctx context.Context, collection string, f Filter) (Document, bool, error)
	Ping(ctx context.Context) error
}
