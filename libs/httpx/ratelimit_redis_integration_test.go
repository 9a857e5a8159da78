//go:build integration

package httpx

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/tasktracker/libs/testutil/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	l := NewRedisLimiter(rc.Client, 2, time.Minute, "test")
	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i)
	}

	ttl, err := rc.Client.PTTL(ctx, "test:1.2.3.4").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
