// Package scheduler implements the background worker that periodically
// recomputes segment membership and sweeps players for time-driven triggers.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeljc/valkyrie/internal/automation"
	"github.com/rafaeljc/valkyrie/internal/logger"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

// TenantLister returns the active tenants. *store.PostgresStore implements it.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// Automation is the core driven by the scheduler. *automation.Service implements it.
type Automation interface {
	RecomputeSegments(ctx context.Context, tenantID string) (*automation.RecomputeResult, error)
	Sweep(ctx context.Context, tenantID string) (*automation.SweepResult, error)
}

// Config holds the configuration for the scheduler.
type Config struct {
	// Interval is the duration between cycles.
	Interval time.Duration
	// RunTimeout bounds one cycle over all tenants.
	RunTimeout time.Duration
	// Sweep enables the scheduled_tick sweep after each recomputation.
	Sweep bool
}

// Service orchestrates the periodic cycles.
type Service struct {
	logger  *slog.Logger
	config  Config
	tenants TenantLister
	svc     Automation
}

// CycleResult summarizes one cycle.
type CycleResult struct {
	Tenants     int
	Failed      int
	Transitions int
	Fired       int
}

// New creates a new scheduler service.
func New(logger *slog.Logger, cfg Config, tenants TenantLister, svc Automation) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if tenants == nil {
		panic("scheduler: tenant lister cannot be nil")
	}
	if svc == nil {
		panic("scheduler: automation service cannot be nil")
	}

	if cfg.Interval < time.Second {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * cfg.Interval
	}

	return &Service{
		logger:  logger,
		config:  cfg,
		tenants: tenants,
		svc:     svc,
	}
}

// Run starts the scheduler loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler service",
		slog.String("interval", s.config.Interval.String()),
		slog.Bool("sweep", s.config.Sweep),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial cycle failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler service stopping...")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				// Retry on next tick.
				s.logger.Error("scheduler cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce performs a single cycle over every active tenant. A failing tenant
// is logged and counted; it does not stop the others.
func (s *Service) RunOnce(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	defer func() {
		observability.SchedulerRunDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return nil, err
	}

	res := &CycleResult{Tenants: len(tenants)}
	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := s.runTenant(ctx, tenantID, res); err != nil {
			res.Failed++
			observability.SchedulerRunsTotal.WithLabelValues("fail").Inc()
			s.logger.Error("tenant cycle failed",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()),
			)
			continue
		}
		observability.SchedulerRunsTotal.WithLabelValues("success").Inc()
	}

	s.logger.Info("scheduler cycle completed",
		slog.Int("tenants", res.Tenants),
		slog.Int("failed", res.Failed),
		slog.Int("transitions", res.Transitions),
		slog.Int("fired", res.Fired),
		slog.String("duration", time.Since(start).String()),
	)
	return res, nil
}

func (s *Service) runTenant(ctx context.Context, tenantID string, res *CycleResult) error {
	ctx, log := logger.With(ctx, slog.String("tenant_id", tenantID))

	rec, err := s.svc.RecomputeSegments(ctx, tenantID)
	if err != nil {
		return err
	}
	res.Transitions += len(rec.Transitions)
	res.Fired += rec.Fired
	log.Debug("segments recomputed",
		slog.Int("segments", rec.Segments),
		slog.Int("transitions", len(rec.Transitions)),
	)

	if !s.config.Sweep {
		return nil
	}

	sweep, err := s.svc.Sweep(ctx, tenantID)
	if sweep != nil {
		res.Fired += sweep.Fired
	}
	return err
}
