package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/rafaeljc/valkyrie/internal/cache"
	"github.com/rafaeljc/valkyrie/internal/config"
)

const redisImage = "redis:7-alpine"

// RedisContainer is a throwaway Redis plus a client built through cache.NewRedisClient.
type RedisContainer struct {
	Container testcontainers.Container
	Client    *goredis.Client
	URL       string
}

// Terminate closes the client and removes the container.
func (c *RedisContainer) Terminate(ctx context.Context) error {
	_ = c.Client.Close()
	return c.Container.Terminate(ctx)
}

// StartRedisContainer runs a single Redis node without persistence.
func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	ctr, err := redis.Run(ctx, redisImage)
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to get redis connection string: %w", err)
	}

	client, err := cache.NewRedisClient(ctx, &config.RedisConfig{
		URL:            uri,
		PoolSize:       10,
		PingMaxRetries: 5,
		PingBackoff:    500 * time.Millisecond,
	})
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	return &RedisContainer{Container: ctr, Client: client, URL: uri}, nil
}

// Flush drops every key, including held admission locks.
func (c *RedisContainer) Flush(t *testing.T) {
	t.Helper()
	require.NoError(t, c.Client.FlushAll(context.Background()).Err())
}
