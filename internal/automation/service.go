// Package automation composes the segment evaluator and the rule engine into
// the operations exposed by the ingest, jobs and scheduler surfaces.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafaeljc/valkyrie/internal/clock"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
	"github.com/rafaeljc/valkyrie/internal/segment"
)

// EventScheduledTick is the synthetic event name used by sweeps so that
// time-driven triggers can fire without a player event.
const EventScheduledTick = "scheduled_tick"

// RuleEvaluator runs the rule engine for one player. *ruleengine.Engine implements it.
type RuleEvaluator interface {
	EvaluateRulesForPlayer(ctx context.Context, playerID, tenantID string, ec ruleengine.Context) *ruleengine.Report
}

// SegmentEvaluator recomputes and checks segment membership. *segment.Evaluator implements it.
type SegmentEvaluator interface {
	EvaluateAll(ctx context.Context, tenantID string) (*segment.Result, error)
	CheckMembership(ctx context.Context, tenantID, segmentID, playerID string) (bool, error)
}

// PlayerLister pages through a tenant's known players. *store.PostgresStore implements it.
type PlayerLister interface {
	ListPlayers(ctx context.Context, tenantID, afterID string, limit int) ([]string, error)
}

// Config tunes the service.
type Config struct {
	// SweepBatchSize is the page size used when sweeping players.
	SweepBatchSize int
}

// Service is safe for concurrent use.
type Service struct {
	rules    RuleEvaluator
	segments SegmentEvaluator
	players  PlayerLister
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger
}

// NewService wires the service. clk defaults to clock.Real().
func NewService(rules RuleEvaluator, segments SegmentEvaluator, players PlayerLister, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if rules == nil {
		panic("automation: rule evaluator cannot be nil")
	}
	if segments == nil {
		panic("automation: segment evaluator cannot be nil")
	}
	if players == nil {
		panic("automation: player lister cannot be nil")
	}
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rules:    rules,
		segments: segments,
		players:  players,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// EvaluatePlayer runs every active rule of the tenant for one player event.
func (s *Service) EvaluatePlayer(ctx context.Context, tenantID, playerID string, ec ruleengine.Context) *ruleengine.Report {
	if ec.Timestamp.IsZero() {
		ec.Timestamp = s.clock.Now()
	}
	return s.rules.EvaluateRulesForPlayer(ctx, playerID, tenantID, ec)
}

// CheckSegment evaluates live whether a player belongs to a segment.
func (s *Service) CheckSegment(ctx context.Context, tenantID, segmentID, playerID string) (bool, error) {
	return s.segments.CheckMembership(ctx, tenantID, segmentID, playerID)
}

// RecomputeResult summarizes a recomputation and the rule runs it caused.
type RecomputeResult struct {
	Segments    int                  `json:"segments"`
	Failed      int                  `json:"failed"`
	Transitions []segment.Transition `json:"transitions"`
	Fired       int                  `json:"fired"`
}

// RecomputeSegments recomputes every segment of a tenant and feeds each
// membership transition to the rule engine as a segment entry/exit event.
func (s *Service) RecomputeSegments(ctx context.Context, tenantID string) (*RecomputeResult, error) {
	res, err := s.segments.EvaluateAll(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute segments for tenant %q: %w", tenantID, err)
	}

	out := &RecomputeResult{
		Segments:    res.Segments,
		Failed:      res.Failed,
		Transitions: res.Transitions,
	}
	if out.Transitions == nil {
		out.Transitions = []segment.Transition{}
	}

	now := s.clock.Now()
	for _, tr := range res.Transitions {
		report := s.rules.EvaluateRulesForPlayer(ctx, tr.PlayerID, tenantID, TransitionContext(tr, now))
		out.Fired += len(report.Fired())
	}
	return out, nil
}

// TransitionContext builds the event context for a membership transition.
func TransitionContext(tr segment.Transition, now time.Time) ruleengine.Context {
	return ruleengine.Context{
		EventName: "segment_" + string(tr.Action),
		Timestamp: now,
		SegmentID: tr.SegmentID,
		Action:    string(tr.Action),
	}
}

// SweepResult summarizes a scheduled sweep.
type SweepResult struct {
	Players int `json:"players"`
	Fired   int `json:"fired"`
}

// Sweep evaluates every known player of a tenant with a scheduled_tick event.
// It stops early, returning the partial result, when ctx is cancelled between players.
func (s *Service) Sweep(ctx context.Context, tenantID string) (*SweepResult, error) {
	out := &SweepResult{}
	after := ""
	for {
		players, err := s.players.ListPlayers(ctx, tenantID, after, s.cfg.SweepBatchSize)
		if err != nil {
			return out, fmt.Errorf("failed to list players for tenant %q: %w", tenantID, err)
		}
		for _, playerID := range players {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			report := s.rules.EvaluateRulesForPlayer(ctx, playerID, tenantID, ruleengine.Context{
				EventName: EventScheduledTick,
				Timestamp: s.clock.Now(),
			})
			out.Players++
			out.Fired += len(report.Fired())
		}
		if len(players) < s.cfg.SweepBatchSize {
			break
		}
		after = players[len(players)-1]
	}

	s.logger.Info("sweep completed",
		slog.String("tenant_id", tenantID),
		slog.Int("players", out.Players),
		slog.Int("fired", out.Fired),
	)
	return out, nil
}
