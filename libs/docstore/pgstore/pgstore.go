// Package pgstore keeps documents in a single Postgres JSONB table.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         text PRIMARY KEY,
	collection text NOT NULL,
	body       jsonb NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection, created_at);
`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ docstore.Store = (*Store)(nil)

// EnsureSchema creates the documents table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, collection string, f docstore.Filter) (docstore.Document, bool, error) {
	where, args, err := whereClause(collection, f)
	if err != nil {
		return docstore.Document{}, false, err
	}
	return s.queryOne(ctx, `SELECT id, body FROM documents WHERE `+where+` ORDER BY created_at, id LIMIT 1`, args)
}

func (s *Store) Find(ctx context.Context, collection string, f docstore.Filter) ([]docstore.Document, error) {
	where, args, err := whereClause(collection, f)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT id, body FROM documents WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (docstore.Document, error) {
		var d docstore.Document
		err := row.Scan(&d.ID, &d.Body)
		return d, err
	})
}

func (s *Store) Insert(ctx context.Context, collection string, body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, collection, body) VALUES ($1, $2, $3::jsonb)`,
		id, collection, string(raw),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO documents (id, collection, body) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body
WHERE documents.collection = EXCLUDED.collection`,
		id, collection, string(raw),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s belongs to another collection", id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, f docstore.Filter) (int64, error) {
	where, args, err := whereClause(collection, f)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE `+where, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Sample(ctx context.Context, collection string, f docstore.Filter) (docstore.Document, bool, error) {
	where, args, err := whereClause(collection, f)
	if err != nil {
		return docstore.Document{}, false, err
	}
	return s.queryOne(ctx, `SELECT id, body FROM documents WHERE `+where+` ORDER BY random() LIMIT 1`, args)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) queryOne(ctx context.Context, sql string, args []any) (docstore.Document, bool, error) {
	var d docstore.Document
	err := s.pool.QueryRow(ctx, sql, args...).Scan(&d.ID, &d.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Document{}, false, nil
	}
	if err != nil {
		return docstore.Document{}, false, err
	}
	return d, true, nil
}

// whereClause renders f as SQL. Field names travel as parameters too, so
// nothing from the filter is spliced into the statement.
func whereClause(collection string, f docstore.Filter) (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}
	conds := []string{"collection = $1"}
	args := []any{collection}
	param := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	for _, key := range f.Keys() {
		column := "id"
		if key != docstore.IDField {
			column = "body->>" + param(key) + "::text"
		}
		switch v := f[key].(type) {
		case string:
			conds = append(conds, column+" = "+param(v))
		case []string:
			conds = append(conds, column+" = ANY("+param(v)+"::text[])")
		}
	}
	return strings.Join(conds, " AND "), args, nil
}
