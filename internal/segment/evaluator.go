package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/valkyrie/internal/facts"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

const (
	defaultBatchSize   = 500
	defaultConcurrency = 4
)

// Config tunes full-population recomputation.
type Config struct {
	// BatchSize is the number of players read per page.
	BatchSize int
	// Concurrency is the number of segments recomputed in parallel.
	Concurrency int
}

// Result summarizes one EvaluateAll run.
type Result struct {
	Segments    int
	Failed      int
	Transitions []Transition
}

// Evaluator matches players against segment criteria.
type Evaluator struct {
	facts  FactComputer
	repo   Repository
	cfg    Config
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator. Zero config values fall back to defaults.
func NewEvaluator(fc FactComputer, repo Repository, cfg Config, logger *slog.Logger) *Evaluator {
	if fc == nil {
		panic("segment: fact computer cannot be nil")
	}
	if repo == nil {
		panic("segment: repository cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	return &Evaluator{facts: fc, repo: repo, cfg: cfg, logger: logger}
}

// Compare applies op to actual (the computed fact) and expected (the rule value).
func Compare(op Operator, actual, expected float64) (bool, error) {
	switch op {
	case OpGreaterThanOrEqual:
		return actual >= expected, nil
	case OpLessThanOrEqual:
		return actual <= expected, nil
	case OpGreaterThan:
		return actual > expected, nil
	case OpLessThan:
		return actual < expected, nil
	case OpEquals:
		return actual == expected, nil
	case OpNotEquals:
		return actual != expected, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}

// EvaluateRule resolves rule.Fact for the player and compares it with rule.Value.
// Unknown facts and operators fail closed (false, nil). Only data-access
// failures are returned as errors.
func (e *Evaluator) EvaluateRule(ctx context.Context, playerID, tenantID string, rule Rule) (bool, error) {
	value, err := e.facts.Compute(ctx, rule.Fact, playerID, tenantID, rule.PeriodInDays)
	if err != nil {
		if errors.Is(err, facts.ErrUnknownFact) {
			e.logger.Warn("segment rule references unknown fact",
				slog.String("fact", string(rule.Fact)),
				slog.String("tenant_id", tenantID),
			)
			return false, nil
		}
		return false, err
	}

	match, err := Compare(rule.Operator, value, rule.Value)
	if err != nil {
		e.logger.Warn("segment rule uses unknown operator",
			slog.String("operator", string(rule.Operator)),
			slog.String("tenant_id", tenantID),
		)
		return false, nil
	}
	return match, nil
}

// EvaluatePlayer reports whether the player satisfies every rule of the segment.
// A segment with no rules never matches.
func (e *Evaluator) EvaluatePlayer(ctx context.Context, playerID, tenantID string, seg Segment) (bool, error) {
	if len(seg.Criteria.Rules) == 0 {
		return false, nil
	}

	for _, rule := range seg.Criteria.Rules {
		ok, err := e.EvaluateRule(ctx, playerID, tenantID, rule)
		if err != nil {
			return false, fmt.Errorf("segment %s: %w", seg.ID, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// CheckMembership loads a segment and evaluates a single player against it.
func (e *Evaluator) CheckMembership(ctx context.Context, tenantID, segmentID, playerID string) (bool, error) {
	seg, err := e.repo.GetSegment(ctx, tenantID, segmentID)
	if err != nil {
		return false, err
	}
	return e.EvaluatePlayer(ctx, playerID, tenantID, *seg)
}

// EvaluateAll recomputes the membership of every segment of a tenant and
// returns the entry/exit transitions. Each segment's stored membership is
// replaced with exactly the current matches; a segment whose evaluation hits a
// data-access error keeps its previous membership and is counted in Failed.
func (e *Evaluator) EvaluateAll(ctx context.Context, tenantID string) (*Result, error) {
	start := time.Now()

	segments, err := e.repo.ListSegments(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	perSegment := make([][]Transition, len(segments))
	failed := make([]bool, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i := range segments {
		g.Go(func() error {
			transitions, err := e.recompute(gctx, segments[i])
			if err != nil {
				e.logger.Error("segment recomputation failed",
					slog.String("segment_id", segments[i].ID),
					slog.String("tenant_id", tenantID),
					slog.String("error", err.Error()),
				)
				failed[i] = true
				return nil
			}
			perSegment[i] = transitions
			return nil
		})
	}
	// Workers report failures through failed, so Wait never returns an error.
	g.Wait() //nolint:errcheck

	result := &Result{Segments: len(segments)}
	for i := range segments {
		if failed[i] {
			result.Failed++
			continue
		}
		result.Transitions = append(result.Transitions, perSegment[i]...)
	}

	observability.SegmentRecomputeDuration.Observe(time.Since(start).Seconds())
	e.logger.Info("segments recomputed",
		slog.String("tenant_id", tenantID),
		slog.Int("segments", result.Segments),
		slog.Int("failed", result.Failed),
		slog.Int("transitions", len(result.Transitions)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// recompute evaluates the whole player population for one segment, page by page,
// and replaces its membership only once every page has been evaluated.
func (e *Evaluator) recompute(ctx context.Context, seg Segment) ([]Transition, error) {
	var members []string

	if len(seg.Criteria.Rules) > 0 {
		after := ""
		for {
			players, err := e.repo.ListPlayers(ctx, seg.TenantID, after, e.cfg.BatchSize)
			if err != nil {
				return nil, fmt.Errorf("failed to list players: %w", err)
			}
			for _, playerID := range players {
				ok, err := e.EvaluatePlayer(ctx, playerID, seg.TenantID, seg)
				if err != nil {
					return nil, err
				}
				if ok {
					members = append(members, playerID)
				}
			}
			if len(players) < e.cfg.BatchSize {
				break
			}
			after = players[len(players)-1]
		}
	}

	entered, exited, err := e.repo.ReplaceMembers(ctx, seg.ID, members)
	if err != nil {
		return nil, fmt.Errorf("failed to replace members: %w", err)
	}

	transitions := make([]Transition, 0, len(entered)+len(exited))
	for _, id := range entered {
		transitions = append(transitions, Transition{SegmentID: seg.ID, PlayerID: id, Action: ActionEntry})
	}
	for _, id := range exited {
		transitions = append(transitions, Transition{SegmentID: seg.ID, PlayerID: id, Action: ActionExit})
	}
	observability.SegmentTransitions.WithLabelValues(string(ActionEntry)).Add(float64(len(entered)))
	observability.SegmentTransitions.WithLabelValues(string(ActionExit)).Add(float64(len(exited)))
	return transitions, nil
}
