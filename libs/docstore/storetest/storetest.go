// Package storetest holds the behaviour every docstore.Store must share.
// Adapters run it from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/tasktracker/libs/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	PublicID string `json:"public_id"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

// Run exercises s. Each subtest uses its own collection, so a shared
// store instance is fine.
func Run(t *testing.T, s docstore.Store) {
	t.Run("InsertAndFind", func(t *testing.T) {
		ctx := context.Background()
		const coll = "st_insert"
		id, err := s.Insert(ctx, coll, person{PublicID: "p1", Role: "admin", Email: "a@x"})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, ok, err := s.FindOne(ctx, coll, docstore.Filter{"public_id": "p1"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, id, doc.ID)
		var got person
		require.NoError(t, doc.Decode(&got))
		assert.Equal(t, person{PublicID: "p1", Role: "admin", Email: "a@x"}, got)

		doc, ok, err = s.FindOne(ctx, coll, docstore.Filter{docstore.IDField: id})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, id, doc.ID)
	})

	t.Run("ReadMissIsNotAnError", func(t *testing.T) {
		ctx := context.Background()
		_, ok, err := s.FindOne(ctx, "st_empty", docstore.Filter{"public_id": "nobody"})
		require.NoError(t, err)
		assert.False(t, ok)

		docs, err := s.Find(ctx, "st_empty", nil)
		require.NoError(t, err)
		assert.Empty(t, docs)

		_, ok, err = s.Sample(ctx, "st_empty", nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("MembershipFilter", func(t *testing.T) {
		ctx := context.Background()
		const coll = "st_membership"
		for _, p := range []person{
			{PublicID: "a", Role: "admin"},
			{PublicID: "m", Role: "manager"},
			{PublicID: "c", Role: "accountant"},
		} {
			_, err := s.Insert(ctx, coll, p)
			require.NoError(t, err)
		}

		docs, err := s.Find(ctx, coll, docstore.Filter{"role": []string{"manager", "accountant"}})
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		for range 20 {
			doc, ok, err := s.Sample(ctx, coll, docstore.Filter{"role": []string{"manager", "accountant"}})
			require.NoError(t, err)
			require.True(t, ok)
			var p person
			require.NoError(t, doc.Decode(&p))
			assert.NotEqual(t, "admin", p.Role)
		}
	})

	t.Run("ReplaceUpserts", func(t *testing.T) {
		ctx := context.Background()
		const coll = "st_replace"
		id, err := s.Insert(ctx, coll, person{PublicID: "p1", Role: "manager"})
		require.NoError(t, err)
		require.NoError(t, s.Replace(ctx, coll, id, person{PublicID: "p1", Role: "accountant"}))
		require.NoError(t, s.Replace(ctx, coll, "fixed-id", person{PublicID: "p2", Role: "admin"}))

		docs, err := s.Find(ctx, coll, nil)
		require.NoError(t, err)
		require.Len(t, docs, 2)

		doc, ok, err := s.FindOne(ctx, coll, docstore.Filter{"public_id": "p1"})
		require.NoError(t, err)
		require.True(t, ok)
		var p person
		require.NoError(t, doc.Decode(&p))
		assert.Equal(t, "accountant", p.Role)

		_, ok, err = s.FindOne(ctx, coll, docstore.Filter{docstore.IDField: "fixed-id", "role": "admin"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		const coll = "st_delete"
		_, err := s.Insert(ctx, coll, person{PublicID: "p1"})
		require.NoError(t, err)
		_, err = s.Insert(ctx, "st_delete_other", person{PublicID: "p1"})
		require.NoError(t, err)

		n, err := s.Delete(ctx, coll, docstore.Filter{"public_id": "p1"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.Delete(ctx, coll, docstore.Filter{"public_id": "p1"})
		require.NoError(t, err)
		assert.Zero(t, n)

		_, ok, err := s.FindOne(ctx, "st_delete_other", docstore.Filter{"public_id": "p1"})
		require.NoError(t, err)
		assert.True(t, ok, "other collections untouched")
	})

	t.Run("RejectsInvalidFilter", func(t *testing.T) {
		_, err := s.Find(context.Background(), "st_invalid", docstore.Filter{"count": 3})
		assert.ErrorIs(t, err, docstore.ErrInvalidFilter)
	})
}
