package config

import (
	"bytes"
	"log/slog"
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalRequiredConfig provides database and Redis config needed for all tests
func minimalRequiredConfig() map[string]string {
	return map[string]string{
		"VALKYRIE_DB_HOST":        "localhost",
		"VALKYRIE_DB_PORT":        "5432",
		"VALKYRIE_DB_NAME":        "valkyrie_test",
		"VALKYRIE_DB_USER":        "test_user",
		"VALKYRIE_DB_PASSWORD":    "test_pass",
		"VALKYRIE_REDIS_HOST":     "localhost",
		"VALKYRIE_REDIS_PORT":     "6379",
		"VALKYRIE_REDIS_PASSWORD": "redis_password_123",
	}
}

// mergeEnvVars merges additional env vars with minimal required config
func mergeEnvVars(additional map[string]string) map[string]string {
	result := minimalRequiredConfig()
	maps.Copy(result, additional)
	return result
}

// validProductionConfig returns a complete valid production configuration
// with all required database, Redis, and jobs API settings for production tests
func validProductionConfig() map[string]string {
	return map[string]string{
		// App
		"VALKYRIE_APP_ENV": "production",

		// Database
		"VALKYRIE_DB_HOST":     "prod-db.example.com",
		"VALKYRIE_DB_PORT":     "5432",
		"VALKYRIE_DB_NAME":     "valkyrie_prod",
		"VALKYRIE_DB_USER":     "prod_user",
		"VALKYRIE_DB_PASSWORD": "SuperSecure123!",
		"VALKYRIE_DB_SSL_MODE": "require",

		// Redis
		"VALKYRIE_REDIS_HOST":        "prod-redis.example.com",
		"VALKYRIE_REDIS_PORT":        "6379",
		"VALKYRIE_REDIS_PASSWORD":    "RedisSecure123!",
		"VALKYRIE_REDIS_TLS_ENABLED": "true",

		// Jobs API
		"VALKYRIE_SERVER_JOBS_API_KEY_HASH":  "5dec7e1c36e8ec7f526cfa8ff6dc788daad76f6dd34467662eb47990dca6b55d",
		"VALKYRIE_SERVER_JOBS_TLS_ENABLED":   "true",
		"VALKYRIE_SERVER_JOBS_TLS_CERT_FILE": "/certs/jobs-cert.pem",
		"VALKYRIE_SERVER_JOBS_TLS_KEY_FILE":  "/certs/jobs-key.pem",
	}
}

// productionWith derives a production config, removing drop and applying set.
func productionWith(set map[string]string, drop ...string) map[string]string {
	env := validProductionConfig()
	for _, k := range drop {
		delete(env, k)
	}
	maps.Copy(env, set)
	return env
}

// runLoadCases executes a table of Load scenarios with isolated env vars.
func runLoadCases(t *testing.T, tests []loadCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// t.Setenv prevents parallel execution and restores values afterwards
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

type loadCase struct {
	name    string
	envVars map[string]string
	want    func(t *testing.T, cfg *Config)
	wantErr bool
}

func TestLoad(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should use defaults when no env vars are set",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "valkyrie", cfg.App.Name)
				assert.Equal(t, "dev", cfg.App.Version)
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "info", cfg.App.LogLevel)
				assert.Equal(t, "text", cfg.App.LogFormat)
				assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "8080", cfg.Server.Jobs.Port)
				assert.Equal(t, "50051", cfg.Server.Ingest.Port)
				assert.Equal(t, "9090", cfg.Observability.Port)
				assert.Equal(t, LockBackendRedis, cfg.Engine.LockBackend)
			},
		},
		{
			name: "Should load all custom environment variables correctly",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_APP_NAME":             "test-app",
				"VALKYRIE_APP_VERSION":          "1.0.0",
				"VALKYRIE_APP_ENV":              "staging",
				"VALKYRIE_APP_LOG_LEVEL":        "debug",
				"VALKYRIE_APP_LOG_FORMAT":       "json",
				"VALKYRIE_APP_SHUTDOWN_TIMEOUT": "60s",
				"VALKYRIE_SERVER_JOBS_PORT":     "9091",
				"VALKYRIE_SERVER_INGEST_PORT":   "50052",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "test-app", cfg.App.Name)
				assert.Equal(t, "1.0.0", cfg.App.Version)
				assert.Equal(t, "staging", cfg.App.Environment)
				assert.Equal(t, "debug", cfg.App.LogLevel)
				assert.Equal(t, "json", cfg.App.LogFormat)
				assert.Equal(t, 60*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "9091", cfg.Server.Jobs.Port)
				assert.Equal(t, "50052", cfg.Server.Ingest.Port)
			},
		},
		{
			name: "Should fail validation on invalid environment value",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_APP_ENV": "invalid",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on invalid log level",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_APP_LOG_LEVEL": "trace",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on invalid log format",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_APP_LOG_FORMAT": "xml",
			}),
			wantErr: true,
		},
		{
			name:    "Should pass validation with a complete production configuration",
			envVars: validProductionConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, EnvironmentProduction, cfg.App.Environment)
				assert.True(t, cfg.Server.Jobs.TLSEnabled)
			},
		},
		{
			name: "Should allow missing passwords in non-production environments",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_APP_ENV":        "development",
				"VALKYRIE_DB_PASSWORD":    "",
				"VALKYRIE_REDIS_PASSWORD": "",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "", cfg.Database.Password)
				assert.Equal(t, "", cfg.Redis.Password)
			},
		},
	})
}

func TestLogConfig(t *testing.T) {
	for k, v := range validProductionConfig() {
		t.Setenv(k, v)
	}
	cfg, err := Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	cfg.LogConfig(slog.New(slog.NewJSONHandler(&buf, nil)))

	out := buf.String()
	assert.Contains(t, out, `"lock_backend":"redis"`)
	assert.Contains(t, out, `"environment":"production"`)
	assert.NotContains(t, out, "SuperSecure123!")
	assert.NotContains(t, out, "RedisSecure123!")
}
