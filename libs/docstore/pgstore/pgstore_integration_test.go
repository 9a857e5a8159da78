//go:build integration

package pgstore

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/tasktracker/libs/docstore/storetest"
	"github.com/md-rashed-zaman/tasktracker/libs/testutil/containers"
	"github.com/stretchr/testify/require"
)

func TestStoreAgainstPostgres(t *testing.T) {
	pg := containers.NewPostgresContainer(t)

	s := New(pg.Pool)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.EnsureSchema(context.Background()), "schema creation is repeatable")
	require.NoError(t, s.Ping(context.Background()))

	storetest.Run(t, s)
}
