// Package app wires the automation core shared by the valkyrie binaries:
// database pool, repositories, caches, admission lock, dispatcher and engine.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/valkyrie/internal/action"
	"github.com/rafaeljc/valkyrie/internal/automation"
	"github.com/rafaeljc/valkyrie/internal/cache"
	"github.com/rafaeljc/valkyrie/internal/clock"
	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/database"
	"github.com/rafaeljc/valkyrie/internal/facts"
	"github.com/rafaeljc/valkyrie/internal/observability"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
	"github.com/rafaeljc/valkyrie/internal/segment"
	"github.com/rafaeljc/valkyrie/internal/store"
	"github.com/rafaeljc/valkyrie/internal/validation"
)

// defaultMonitorInterval applies when the configured interval is unset.
const defaultMonitorInterval = 15 * time.Second

// Core holds the long-lived collaborators of a process.
type Core struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
	Store *store.PostgresStore

	// Rules is nil when the rule cache TTL is zero.
	Rules *cache.RuleCache

	Engine     *ruleengine.Engine
	Segments   *segment.Evaluator
	Automation *automation.Service
	Checkers   []observability.Checker

	monitorInterval time.Duration
}

// NewCore connects to the infrastructure and builds the automation core.
// Connections opened before a failure are closed before returning.
func NewCore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Core, error) {
	validation.AssertNotNil(cfg, "app", "config")

	c := &Core{}
	built := false
	defer func() {
		if !built {
			c.Close()
		}
	}()

	var err error
	c.Pool, err = database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	c.Store = store.NewPostgresStore(c.Pool)
	c.Checkers = append(c.Checkers, database.NewHealthChecker(c.Pool))

	var locker ruleengine.Locker = ruleengine.NoopLocker{}
	if cfg.Engine.UsesRedis() {
		c.Redis, err = cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		locker = cache.NewRedisLocker(c.Redis)
		c.Checkers = append(c.Checkers, cache.NewHealthChecker(c.Redis))
	}

	var rules ruleengine.RuleRepository = c.Store
	if cfg.Engine.RuleCacheTTL > 0 {
		c.Rules, err = cache.NewRuleCache(c.Store, cfg.Engine.RuleCacheCapacity, cfg.Engine.RuleCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to build rule cache: %w", err)
		}
		rules = c.Rules
	}

	clk := clock.Real()

	c.Engine = ruleengine.New(ruleengine.Dependencies{
		Rules:      rules,
		Executions: c.Store,
		Events:     c.Store,
		Dispatcher: action.NewFromConfig(&cfg.Delivery, log),
		Locker:     locker,
		Clock:      clk,
		Logger:     log,
	}, ruleengine.Options{
		ActionTimeout:  cfg.Engine.ActionTimeout,
		PersistTimeout: cfg.Engine.PersistTimeout,
		LockTTL:        cfg.Engine.LockTTL,
	})

	c.Segments = segment.NewEvaluator(facts.NewProvider(c.Store, clk, log), c.Store, segment.Config{
		BatchSize:   cfg.Scheduler.PlayerBatchSize,
		Concurrency: cfg.Scheduler.SegmentConcurrency,
	}, log)

	c.Automation = automation.NewService(c.Engine, c.Segments, c.Store, clk, automation.Config{
		SweepBatchSize: cfg.Scheduler.PlayerBatchSize,
	}, log)

	c.monitorInterval = cfg.Observability.MonitorInterval
	if c.monitorInterval <= 0 {
		c.monitorInterval = defaultMonitorInterval
	}

	built = true
	return c, nil
}

// StartMonitors samples pool and cache metrics until ctx is cancelled.
func (c *Core) StartMonitors(ctx context.Context) {
	go database.RunPoolMonitor(ctx, c.Pool, c.monitorInterval)
	if c.Redis != nil {
		go cache.RunPoolMonitor(ctx, c.Redis, c.monitorInterval)
	}
	if c.Rules != nil {
		go c.Rules.RunMetricsCollector(ctx, c.monitorInterval)
	}
}

// Close releases every connection. It is safe on a partially built Core.
func (c *Core) Close() {
	if c.Rules != nil {
		c.Rules.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
