package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// probeKey is written on every readiness check. It sits outside the lock
// namespace so it can never collide with an admission key.
const probeKey = "valkyrie:health:probe"

// HealthChecker reports Redis ready only when it accepts writes.
// A read-only replica answers PING but cannot hold admission locks.
type HealthChecker struct {
	client *redis.Client
}

func NewHealthChecker(client *redis.Client) *HealthChecker {
	return &HealthChecker{client: client}
}

func (h *HealthChecker) Name() string {
	return "redis"
}

// Check issues a short-lived SET on probeKey.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.client == nil {
		return errors.New("redis client is nil")
	}
	if err := h.client.Set(ctx, probeKey, "1", time.Second).Err(); err != nil {
		return fmt.Errorf("redis not writable: %w", err)
	}
	return nil
}
