//go:build integration

package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/cache"
	"github.com/rafaeljc/valkyrie/internal/testsupport"
)

func TestHealthChecker_Integration(t *testing.T) {
	ctx := context.Background()
	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	checker := cache.NewHealthChecker(redisCtr.Client)
	assert.Equal(t, "redis", checker.Name())

	t.Run("Should pass on a writable primary", func(t *testing.T) {
		require.NoError(t, checker.Check(ctx))

		ttl, err := redisCtr.Client.PTTL(ctx, "valkyrie:health:probe").Result()
		require.NoError(t, err)
		assert.Positive(t, ttl)
	})

	t.Run("Should fail when the server rejects writes", func(t *testing.T) {
		require.NoError(t, redisCtr.Client.ConfigSet(ctx, "min-replicas-to-write", "1").Err())
		defer redisCtr.Client.ConfigSet(ctx, "min-replicas-to-write", "0")

		err := checker.Check(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis not writable")
	})
}
