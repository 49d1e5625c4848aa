//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/cache"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
	"github.com/rafaeljc/valkyrie/internal/testsupport"
)

func TestRedisLocker_Integration(t *testing.T) {
	ctx := context.Background()
	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	locker := cache.NewRedisLocker(redisCtr.Client)
	key := ruleengine.LockKey{TenantID: "casino-1", RuleID: "rule-1", PlayerID: "player-1"}

	t.Run("Should reject a second holder until release", func(t *testing.T) {
		release, err := locker.Acquire(ctx, key, 5*time.Second)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, key, 5*time.Second)
		assert.ErrorIs(t, err, ruleengine.ErrLockNotAcquired)

		require.NoError(t, release(ctx))

		again, err := locker.Acquire(ctx, key, 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, again(ctx))
	})

	t.Run("Should allow independent keys concurrently", func(t *testing.T) {
		other := key
		other.PlayerID = "player-2"

		r1, err := locker.Acquire(ctx, key, 5*time.Second)
		require.NoError(t, err)
		r2, err := locker.Acquire(ctx, other, 5*time.Second)
		require.NoError(t, err)

		require.NoError(t, r1(ctx))
		require.NoError(t, r2(ctx))
	})

	t.Run("Should expire an abandoned lock after its TTL", func(t *testing.T) {
		_, err := locker.Acquire(ctx, key, 100*time.Millisecond)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			release, err := locker.Acquire(ctx, key, 5*time.Second)
			if err != nil {
				return false
			}
			_ = release(ctx)
			return true
		}, 2*time.Second, 25*time.Millisecond)
	})

	t.Run("Should not release a lock re-acquired by another holder", func(t *testing.T) {
		redisCtr.Flush(t)

		staleRelease, err := locker.Acquire(ctx, key, 100*time.Millisecond)
		require.NoError(t, err)

		// Let it expire, then a new holder takes it.
		time.Sleep(200 * time.Millisecond)
		freshRelease, err := locker.Acquire(ctx, key, 5*time.Second)
		require.NoError(t, err)

		require.NoError(t, staleRelease(ctx))

		exists, err := redisCtr.Client.Exists(ctx, cache.LockKeyFor(key)).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists, "stale release must not delete the new holder's lock")

		require.NoError(t, freshRelease(ctx))
	})

	t.Run("Should grant a lock again after the store is flushed", func(t *testing.T) {
		_, err := locker.Acquire(ctx, key, time.Minute)
		require.NoError(t, err)

		redisCtr.Flush(t)

		release, err := locker.Acquire(ctx, key, time.Minute)
		require.NoError(t, err)
		require.NoError(t, release(ctx))
	})
}
