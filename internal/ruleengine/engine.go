package ruleengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rafaeljc/valkyrie/internal/clock"
	"github.com/rafaeljc/valkyrie/internal/facts"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

const (
	defaultActionTimeout  = 10 * time.Second
	defaultPersistTimeout = 5 * time.Second
	defaultLockTTL        = 30 * time.Second
)

// Outcome is the result of evaluating one rule in one invocation.
type Outcome string

const (
	// OutcomeSkipped: unknown trigger type, invalid configuration or a contended admission lock.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDenied: the time window, a condition or a frequency limit rejected the rule.
	OutcomeDenied Outcome = "denied"
	// OutcomeNotTriggered: the trigger predicate was false.
	OutcomeNotTriggered Outcome = "not_triggered"
	// OutcomeFired: the action was delivered and a successful execution recorded.
	OutcomeFired Outcome = "fired"
	// OutcomeFailed: variant selection or delivery failed and a failed execution was recorded.
	OutcomeFailed Outcome = "failed"
	// OutcomeError: a data-access failure interrupted this rule.
	OutcomeError Outcome = "error"
)

// RuleResult describes what happened to one rule.
type RuleResult struct {
	RuleID    string  `json:"ruleId"`
	RuleName  string  `json:"ruleName,omitempty"`
	Outcome   Outcome `json:"outcome"`
	VariantID string  `json:"variantId,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// Report summarizes one invocation. Failures are described, never returned.
type Report struct {
	TenantID string       `json:"tenantId"`
	PlayerID string       `json:"playerId"`
	Results  []RuleResult `json:"results"`
	// Error is set when the active rules could not be loaded at all.
	Error string `json:"error,omitempty"`
}

// Fired returns the IDs of rules that executed successfully.
func (r *Report) Fired() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Outcome == OutcomeFired {
			ids = append(ids, res.RuleID)
		}
	}
	return ids
}

// Dependencies are the collaborators of the Engine. Rules, Executions, Events
// and Dispatcher are mandatory.
type Dependencies struct {
	Rules      RuleRepository
	Executions ExecutionRepository
	Events     facts.EventReader
	Dispatcher ActionDispatcher

	// Locker defaults to NoopLocker.
	Locker Locker
	// Clock defaults to clock.Real().
	Clock clock.Clock
	// Rand defaults to DefaultRand().
	Rand RandSource
	// Triggers defaults to DefaultTriggers().
	Triggers TriggerSet
	Logger   *slog.Logger
}

// Options bounds the blocking calls made per rule. Zero values use defaults.
type Options struct {
	ActionTimeout  time.Duration
	PersistTimeout time.Duration
	LockTTL        time.Duration
}

// Engine orchestrates rule evaluation for one player event at a time.
// It holds no per-invocation state and is safe for concurrent use.
type Engine struct {
	rules      RuleRepository
	executions ExecutionRepository
	events     facts.EventReader
	dispatcher ActionDispatcher
	locker     Locker
	clock      clock.Clock
	rand       RandSource
	triggers   TriggerSet
	gate       *Gate
	opts       Options
	logger     *slog.Logger
}

// New creates an Engine. It panics when a mandatory dependency is missing.
func New(deps Dependencies, opts Options) *Engine {
	switch {
	case deps.Rules == nil:
		panic("ruleengine: rule repository cannot be nil")
	case deps.Executions == nil:
		panic("ruleengine: execution repository cannot be nil")
	case deps.Events == nil:
		panic("ruleengine: event reader cannot be nil")
	case deps.Dispatcher == nil:
		panic("ruleengine: action dispatcher cannot be nil")
	}

	if deps.Locker == nil {
		deps.Locker = NoopLocker{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Rand == nil {
		deps.Rand = DefaultRand()
	}
	if deps.Triggers == nil {
		deps.Triggers = DefaultTriggers()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}

	return &Engine{
		rules:      deps.Rules,
		executions: deps.Executions,
		events:     deps.Events,
		dispatcher: deps.Dispatcher,
		locker:     deps.Locker,
		clock:      deps.Clock,
		rand:       deps.Rand,
		triggers:   deps.Triggers,
		gate:       NewGate(deps.Executions),
		opts:       opts,
		logger:     deps.Logger,
	}
}

// EvaluateRulesForPlayer runs every active rule of the tenant, highest
// priority first, against one player and event context. Rules are evaluated
// sequentially and a failure in one never prevents the next from running.
// Once started, the invocation is not interrupted by ctx cancellation.
func (e *Engine) EvaluateRulesForPlayer(ctx context.Context, playerID, tenantID string, ec Context) *Report {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)
	log := e.logger.With(slog.String("tenant_id", tenantID), slog.String("player_id", playerID))

	report := &Report{TenantID: tenantID, PlayerID: playerID}

	rules, err := e.rules.ListActiveRules(ctx, tenantID)
	if err != nil {
		log.Error("failed to load active rules", slog.String("error", err.Error()))
		report.Error = err.Error()
		return report
	}

	report.Results = make([]RuleResult, 0, len(rules))
	for _, rule := range rules {
		res := e.evaluateRule(ctx, log, &rule, playerID, tenantID, ec)
		observability.EngineRuleOutcomes.WithLabelValues(string(res.Outcome)).Inc()
		report.Results = append(report.Results, res)
	}

	observability.EngineEvaluationDuration.Observe(time.Since(start).Seconds())
	log.Debug("rules evaluated",
		slog.Int("rules", len(rules)),
		slog.Int("fired", len(report.Fired())),
		slog.String("event", ec.EventName),
	)
	return report
}

func (e *Engine) evaluateRule(ctx context.Context, log *slog.Logger, rule *Rule, playerID, tenantID string, ec Context) RuleResult {
	res := RuleResult{RuleID: rule.ID, RuleName: rule.Name}
	log = log.With(slog.String("rule_id", rule.ID), slog.String("trigger", string(rule.TriggerType)))

	trigger, ok := e.triggers[rule.TriggerType]
	if !ok {
		log.Warn("skipping rule with unknown trigger type")
		observability.EngineUnknownTriggers.Inc()
		return res.with(OutcomeSkipped, "unknown_trigger")
	}

	if rule.Compiled == nil {
		if err := compileRule(rule); err != nil {
			log.Warn("skipping rule with invalid configuration", slog.String("error", err.Error()))
			return res.with(OutcomeSkipped, "invalid_config")
		}
	}

	now := e.clock.Now()
	if d := CheckTime(rule, now); d != DenialNone {
		return res.with(OutcomeDenied, string(d))
	}
	if d := CheckConditions(&rule.Compiled.Conditions, playerID, ec, now); d != DenialNone {
		return res.with(OutcomeDenied, string(d))
	}

	release, err := e.locker.Acquire(ctx, LockKey{TenantID: tenantID, RuleID: rule.ID, PlayerID: playerID}, e.opts.LockTTL)
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			observability.LockContention.Inc()
			log.Info("rule admission already in progress elsewhere")
			return res.with(OutcomeSkipped, "locked")
		}
		log.Error("failed to acquire admission lock", slog.String("error", err.Error()))
		return res.with(OutcomeError, err.Error())
	}
	defer func() {
		if err := release(ctx); err != nil {
			log.Warn("failed to release admission lock", slog.String("error", err.Error()))
		}
	}()

	d, err := e.gate.CheckFrequency(ctx, rule, playerID, now)
	if err != nil {
		log.Error("frequency gate failed", slog.String("error", err.Error()))
		return res.with(OutcomeError, err.Error())
	}
	if d != DenialNone {
		return res.with(OutcomeDenied, string(d))
	}

	fired, err := trigger(ctx, e.events, TriggerInput{
		PlayerID: playerID,
		TenantID: tenantID,
		Config:   rule.Compiled.Trigger,
		Context:  ec,
		Now:      now,
	})
	if err != nil {
		log.Error("trigger evaluation failed", slog.String("error", err.Error()))
		return res.with(OutcomeError, err.Error())
	}
	if !fired {
		return res.with(OutcomeNotTriggered, "")
	}

	return e.execute(ctx, log, rule, playerID, tenantID, now, res)
}

// execute selects a variant, delivers its action and records the attempt.
func (e *Engine) execute(ctx context.Context, log *slog.Logger, rule *Rule, playerID, tenantID string, now time.Time, res RuleResult) RuleResult {
	exec := Execution{
		ID:        uuid.NewString(),
		RuleID:    rule.ID,
		PlayerID:  playerID,
		TenantID:  tenantID,
		CreatedAt: now,
	}

	variant := SelectVariant(rule.Variants, e.rand)
	if variant == nil {
		exec.Error = ErrNoVariant.Error()
		log.Warn("triggered rule has no variants")
		return e.recordFailure(ctx, log, exec, res)
	}
	exec.VariantID = &variant.ID
	res.VariantID = variant.ID

	if err := e.dispatch(ctx, variant, playerID, tenantID); err != nil {
		exec.Error = err.Error()
		log.Error("action dispatch failed",
			slog.String("variant_id", variant.ID),
			slog.String("action_type", variant.ActionType),
			slog.String("error", err.Error()),
		)
		return e.recordFailure(ctx, log, exec, res)
	}

	exec.Success = true
	pctx, cancel := context.WithTimeout(ctx, e.opts.PersistTimeout)
	defer cancel()
	if err := e.executions.RecordSuccess(pctx, exec); err != nil {
		log.Error("action delivered but execution was not recorded",
			slog.String("execution_id", exec.ID),
			slog.String("error", err.Error()),
		)
		return res.with(OutcomeError, err.Error())
	}

	observability.EngineExecutions.WithLabelValues("success").Inc()
	log.Info("rule fired",
		slog.String("variant_id", variant.ID),
		slog.String("action_type", variant.ActionType),
		slog.String("execution_id", exec.ID),
	)
	return res.with(OutcomeFired, "")
}

// dispatch delivers the action and converts a panicking handler into an error.
func (e *Engine) dispatch(ctx context.Context, v *Variant, playerID, tenantID string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.ActionTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", v.ActionType, r)
		}
	}()
	return e.dispatcher.Dispatch(ctx, v.ActionType, playerID, tenantID, v.ActionPayload)
}

func (e *Engine) recordFailure(ctx context.Context, log *slog.Logger, exec Execution, res RuleResult) RuleResult {
	pctx, cancel := context.WithTimeout(ctx, e.opts.PersistTimeout)
	defer cancel()
	if err := e.executions.RecordFailure(pctx, exec); err != nil {
		log.Error("failed to record failed execution", slog.String("error", err.Error()))
		return res.with(OutcomeError, err.Error())
	}
	observability.EngineExecutions.WithLabelValues("failure").Inc()
	return res.with(OutcomeFailed, exec.Error)
}

func (r RuleResult) with(o Outcome, reason string) RuleResult {
	r.Outcome = o
	r.Reason = reason
	return r
}
