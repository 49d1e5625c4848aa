package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var redisComponentKeys = []string{
	"VALKYRIE_REDIS_HOST", "VALKYRIE_REDIS_PORT",
	"VALKYRIE_REDIS_PASSWORD", "VALKYRIE_REDIS_TLS_ENABLED",
}

func redisURL(u string) map[string]string {
	return productionWith(map[string]string{"VALKYRIE_REDIS_URL": u}, redisComponentKeys...)
}

func TestRedisConfig_Validation(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should size the pool for lock traffic by default",
			envVars: mergeEnvVars(nil),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 20, cfg.Redis.PoolSize)
				assert.Equal(t, 2, cfg.Redis.MinIdleConns)
				assert.Equal(t, 2, cfg.Redis.MaxRetries)
				assert.Equal(t, "localhost:6379", cfg.Redis.Address())
			},
		},
		{
			name: "Should parse ping retry settings",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_REDIS_PING_MAX_RETRIES": "8",
				"VALKYRIE_REDIS_PING_BACKOFF":     "3s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8, cfg.Redis.PingMaxRetries)
				assert.Equal(t, 3*time.Second, cfg.Redis.PingBackoff)
			},
		},
		{
			name:    "Should reject PingMaxRetries below one",
			envVars: mergeEnvVars(map[string]string{"VALKYRIE_REDIS_PING_MAX_RETRIES": "0"}),
			wantErr: true,
		},
		{
			name:    "Should reject a malformed PingBackoff",
			envVars: mergeEnvVars(map[string]string{"VALKYRIE_REDIS_PING_BACKOFF": "notaduration"}),
			wantErr: true,
		},
		{
			name:    "Should require a password in production",
			envVars: productionWith(nil, "VALKYRIE_REDIS_PASSWORD"),
			wantErr: true,
		},
		{
			name:    "Should reject a short password in production",
			envVars: productionWith(map[string]string{"VALKYRIE_REDIS_PASSWORD": "short"}),
			wantErr: true,
		},
		{
			name:    "Should require TLS in production",
			envVars: productionWith(map[string]string{"VALKYRIE_REDIS_TLS_ENABLED": "false"}),
			wantErr: true,
		},
		{
			name: "Should allow a passwordless Redis in development",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_APP_ENV":        "development",
				"VALKYRIE_REDIS_PASSWORD": "",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Redis.Password)
			},
		},
		{
			name: "Should reject MinIdleConns above PoolSize",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_REDIS_POOL_SIZE":      "20",
				"VALKYRIE_REDIS_MIN_IDLE_CONNS": "50",
			}),
			wantErr: true,
		},
		{
			name:    "Should reject a DB index above 15",
			envVars: mergeEnvVars(map[string]string{"VALKYRIE_REDIS_DB": "16"}),
			wantErr: true,
		},
		{
			name:    "Should reject a negative DB index",
			envVars: mergeEnvVars(map[string]string{"VALKYRIE_REDIS_DB": "-1"}),
			wantErr: true,
		},
		{
			name:    "Should reject a non-numeric port",
			envVars: mergeEnvVars(map[string]string{"VALKYRIE_REDIS_PORT": "abc"}),
			wantErr: true,
		},
		{
			name:    "Should reject a host with surrounding whitespace",
			envVars: mergeEnvVars(map[string]string{"VALKYRIE_REDIS_HOST": " localhost"}),
			wantErr: true,
		},
		{
			name:    "Should accept a TLS URL in production",
			envVars: redisURL("rediss://:password@redis.example.com:6379/0"),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "rediss://:password@redis.example.com:6379/0", cfg.Redis.Address())
				assert.True(t, cfg.Redis.IsConfigured())
			},
		},
		{
			name:    "Should reject a URL with a foreign scheme",
			envVars: redisURL("http://redis.example.com:6379/0"),
			wantErr: true,
		},
		{
			name:    "Should reject a URL selecting DB 16",
			envVars: redisURL("redis://redis.example.com:6379/16"),
			wantErr: true,
		},
		{
			name:    "Should reject a URL with a non-numeric DB",
			envVars: redisURL("redis://redis.example.com:6379/abc"),
			wantErr: true,
		},
		{
			name: "Should skip Redis entirely when the lock backend is none",
			envVars: map[string]string{
				"VALKYRIE_DB_HOST":             "localhost",
				"VALKYRIE_DB_PORT":             "5432",
				"VALKYRIE_DB_NAME":             "valkyrie_test",
				"VALKYRIE_DB_USER":             "test_user",
				"VALKYRIE_ENGINE_LOCK_BACKEND": "none",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Engine.UsesRedis())
				assert.False(t, cfg.Redis.IsConfigured())
			},
		},
	})
}
