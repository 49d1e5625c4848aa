// Package config loads process configuration from VALKYRIE_* environment
// variables with envconfig and checks it with go-playground/validator plus
// per-section rules.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvironmentProduction = "production"

	// EnvPrefix is the prefix shared by every environment variable.
	EnvPrefix = "VALKYRIE"
)

// Config is the configuration of every valkyrie binary. Each binary reads
// the sections it needs.
type Config struct {
	App           AppConfig           `envconfig:"APP"`
	Server        ServerConfig        `envconfig:"SERVER"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	Engine        EngineConfig        `envconfig:"ENGINE"`
	Delivery      DeliveryConfig      `envconfig:"DELIVERY"`
	Scheduler     SchedulerConfig     `envconfig:"SCHEDULER"`
}

// AppConfig identifies the process and sets up logging.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"valkyrie"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// ServerConfig groups the two inbound transports.
type ServerConfig struct {
	Ingest IngestConfig `envconfig:"INGEST"`
	Jobs   JobsConfig   `envconfig:"JOBS"`
}

// Load processes the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate runs the struct tags first and then each section's own rules,
// returning the first failure. Redis is only checked when it backs the
// admission lock.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	env := c.App.Environment
	checks := []func() error{
		func() error { return c.Database.Validate(env) },
		func() error {
			if !c.Engine.UsesRedis() {
				return nil
			}
			return c.Redis.Validate(env)
		},
		func() error { return c.Server.Jobs.Validate(env) },
		c.Server.Ingest.Validate,
		c.Observability.Validate,
		c.Delivery.Validate,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// LogConfig logs the non-secret settings at startup.
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.Group("app",
			slog.String("name", c.App.Name),
			slog.String("version", c.App.Version),
			slog.String("environment", c.App.Environment),
			slog.String("log_level", c.App.LogLevel),
			slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		),
		slog.Group("server",
			slog.String("ingest_port", c.Server.Ingest.Port),
			slog.String("jobs_port", c.Server.Jobs.Port),
			slog.Bool("jobs_tls", c.Server.Jobs.TLSEnabled),
			slog.String("observability_port", c.Observability.Port),
		),
		slog.Group("engine",
			slog.String("lock_backend", c.Engine.LockBackend),
			slog.Duration("rule_cache_ttl", c.Engine.RuleCacheTTL),
			slog.Any("delivery_channels", c.Delivery.Channels()),
		),
		slog.Group("scheduler",
			slog.Duration("interval", c.Scheduler.Interval),
			slog.Bool("sweep", c.Scheduler.SweepEnabled),
		),
		slog.Bool("db_configured", c.Database.IsConfigured()),
		slog.Bool("redis_configured", c.Redis.IsConfigured()),
	)
}
