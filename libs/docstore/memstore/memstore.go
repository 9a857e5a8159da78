// Package memstore keeps documents in process memory. It backs unit tests
// and local runs without Postgres.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
)

type record struct {
	id     string
	body   json.RawMessage
	fields map[string]any
}

type Store struct {
	mu          sync.RWMutex
	collections map[string][]*record

	// FailWith, when set, is returned by every call.
	FailWith error
}

func New() *Store {
	return &Store{collections: map[string][]*record{}}
}

var _ docstore.Store = (*Store)(nil)

func (s *Store) FindOne(ctx context.Context, collection string, f docstore.Filter) (docstore.Document, bool, error) {
	docs, err := s.Find(ctx, collection, f)
	if err != nil || len(docs) == 0 {
		return docstore.Document{}, false, err
	}
	return docs[0], true, nil
}

func (s *Store) Find(_ context.Context, collection string, f docstore.Filter) ([]docstore.Document, error) {
	if err := s.check(f); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docstore.Document
	for _, r := range s.collections[collection] {
		if matches(r, f) {
			out = append(out, r.document())
		}
	}
	return out, nil
}

func (s *Store) Insert(_ context.Context, collection string, body any) (string, error) {
	if s.FailWith != nil {
		return "", s.FailWith
	}
	r, err := newRecord(uuid.NewString(), body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], r)
	return r.id, nil
}

func (s *Store) Replace(_ context.Context, collection, id string, body any) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	r, err := newRecord(id, body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.collections[collection]
	for i, existing := range records {
		if existing.id == id {
			records[i] = r
			return nil
		}
	}
	s.collections[collection] = append(records, r)
	return nil
}

func (s *Store) Delete(_ context.Context, collection string, f docstore.Filter) (int64, error) {
	if err := s.check(f); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.collections[collection])
	s.collections[collection] = slices.DeleteFunc(s.collections[collection], func(r *record) bool {
		return matches(r, f)
	})
	return int64(before - len(s.collections[collection])), nil
}

func (s *Store) Sample(ctx context.Context, collection string, f docstore.Filter) (docstore.Document, bool, error) {
	docs, err := s.Find(ctx, collection, f)
	if err != nil || len(docs) == 0 {
		return docstore.Document{}, false, err
	}
	return docs[rand.IntN(len(docs))], true, nil
}

func (s *Store) Ping(context.Context) error {
	return s.FailWith
}

// Len returns the number of documents in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *Store) check(f docstore.Filter) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	return f.Validate()
}

func newRecord(id string, body any) (*record, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("document body must be a JSON object: %w", err)
	}
	return &record{id: id, body: raw, fields: fields}, nil
}

func (r *record) document() docstore.Document {
	return docstore.Document{ID: r.id, Body: slices.Clone(r.body)}
}

func matches(r *record, f docstore.Filter) bool {
	for key, want := range f {
		var got string
		if key == docstore.IDField {
			got = r.id
		} else {
			s, ok := r.fields[key].(string)
			if !ok {
				return false
			}
			got = s
		}
		switch w := want.(type) {
		case string:
			if got != w {
				return false
			}
		case []string:
			if !slices.Contains(w, got) {
				return false
			}
		}
	}
	return true
}
