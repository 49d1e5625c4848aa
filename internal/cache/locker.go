package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spaolacci/murmur3"

	"github.com/rafaeljc/valkyrie/internal/ruleengine"
	"github.com/rafaeljc/valkyrie/internal/validation"
)

// LockKeyPrefix namespaces admission lock keys in Redis.
// Example: "valkyrie:lock:casino-1:4f1c0e55d2a1b7c38e0a9d1b2c3f4a5b"
const LockKeyPrefix = "valkyrie:lock"

// releaseScript deletes the key only when it still holds the caller's token,
// so an expired lock re-acquired by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements ruleengine.Locker with SET NX PX.
type RedisLocker struct {
	client *redis.Client
}

var _ ruleengine.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker backed by client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	validation.AssertNotNil(client, "cache", "redis client")
	return &RedisLocker{client: client}
}

// Acquire takes the admission lock for key. It returns ruleengine.ErrLockNotAcquired
// when another holder owns it. The lock expires after ttl even if never released.
func (l *RedisLocker) Acquire(ctx context.Context, key ruleengine.LockKey, ttl time.Duration) (func(context.Context) error, error) {
	redisKey := LockKeyFor(key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", redisKey, err)
	}
	if !ok {
		return nil, ruleengine.ErrLockNotAcquired
	}

	release := func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release lock %q: %w", redisKey, err)
		}
		return nil
	}
	return release, nil
}

// LockKeyFor derives the Redis key for an admission. Rule and player IDs are
// hashed so keys stay fixed-size regardless of identifier length.
func LockKeyFor(key ruleengine.LockKey) string {
	h := murmur3.New128()
	_, _ = h.Write([]byte(key.RuleID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.PlayerID))
	hi, lo := h.Sum128()
	return fmt.Sprintf("%s:%s:%016x%016x", LockKeyPrefix, key.TenantID, hi, lo)
}
