package config

import "time"

const (
	// LockBackendRedis serializes admission per (rule, player) across processes.
	LockBackendRedis = "redis"

	// LockBackendNone disables the admission lock.
	LockBackendNone = "none"
)

// EngineConfig tunes the rule engine.
type EngineConfig struct {
	RuleCacheCapacity int           `envconfig:"RULE_CACHE_CAPACITY" default:"1000" validate:"min=1"`
	RuleCacheTTL      time.Duration `envconfig:"RULE_CACHE_TTL" default:"30s" validate:"gte=0"`
	LockBackend       string        `envconfig:"LOCK_BACKEND" default:"redis" validate:"oneof=redis none"`
	LockTTL           time.Duration `envconfig:"LOCK_TTL" default:"30s" validate:"gt=0"`
	ActionTimeout     time.Duration `envconfig:"ACTION_TIMEOUT" default:"10s" validate:"gt=0"`
	PersistTimeout    time.Duration `envconfig:"PERSIST_TIMEOUT" default:"5s" validate:"gt=0"`
}

// UsesRedis reports whether the engine needs a Redis connection.
func (c *EngineConfig) UsesRedis() bool {
	return c.LockBackend == LockBackendRedis
}
