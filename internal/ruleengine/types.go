// Package ruleengine matches player events against a tenant's automation
// rules. Each active rule runs through the gate (time window, conditions,
// frequency), its trigger predicate, weighted variant selection and action
// dispatch, and every firing attempt is persisted as an execution.
package ruleengine

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// TriggerType is the discriminator that selects a rule's trigger predicate.
type TriggerType string

const (
	TriggerInactivity             TriggerType = "INACTIVITY"
	TriggerEvent                  TriggerType = "EVENT"
	TriggerSegmentEntry           TriggerType = "SEGMENT_ENTRY"
	TriggerSegmentExit            TriggerType = "SEGMENT_EXIT"
	TriggerTimeBased              TriggerType = "TIME_BASED"
	TriggerDepositThreshold       TriggerType = "DEPOSIT_THRESHOLD"
	TriggerWithdrawalThreshold    TriggerType = "WITHDRAWAL_THRESHOLD"
	TriggerLoginStreak            TriggerType = "LOGIN_STREAK"
	TriggerLossStreak             TriggerType = "LOSS_STREAK"
	TriggerWinStreak              TriggerType = "WIN_STREAK"
	TriggerFirstDeposit           TriggerType = "FIRST_DEPOSIT"
	TriggerBirthday               TriggerType = "BIRTHDAY"
	TriggerAccountAnniversary     TriggerType = "ACCOUNT_ANNIVERSARY"
	TriggerLowBalance             TriggerType = "LOW_BALANCE"
	TriggerHighBalance            TriggerType = "HIGH_BALANCE"
	TriggerGameSpecific           TriggerType = "GAME_SPECIFIC"
	TriggerBetSize                TriggerType = "BET_SIZE"
	TriggerSessionDuration        TriggerType = "SESSION_DURATION"
	TriggerMultipleFailedDeposits TriggerType = "MULTIPLE_FAILED_DEPOSITS"
	TriggerRTPThreshold           TriggerType = "RTP_THRESHOLD"
	TriggerBonusExpiry            TriggerType = "BONUS_EXPIRY"
)

var (
	// ErrNoVariant is recorded as the execution error when a triggered rule has no variants.
	ErrNoVariant = errors.New("rule has no variants")

	// ErrLockNotAcquired is returned by a Locker when another invocation holds the admission lock.
	ErrLockNotAcquired = errors.New("admission lock not acquired")
)

// Rule is a tenant-scoped automation definition. It is read-only to the engine.
type Rule struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenantId"`
	Name          string          `json:"name"`
	Active        bool            `json:"active"`
	TriggerType   TriggerType     `json:"triggerType"`
	TriggerConfig json.RawMessage `json:"triggerConfig,omitempty"`
	Conditions    json.RawMessage `json:"conditions,omitempty"`
	Priority      int             `json:"priority"`

	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	ActiveHours    []int      `json:"activeHours,omitempty"`    // 0-23
	ActiveWeekdays []int      `json:"activeWeekdays,omitempty"` // 0 = Sunday

	MaxExecutionsPerPlayer *int `json:"maxExecutionsPerPlayer,omitempty"`
	CooldownPeriodDays     *int `json:"cooldownPeriodDays,omitempty"`

	// ConversionGoal is informational and never evaluated.
	ConversionGoal string `json:"conversionGoal,omitempty"`

	TotalExecutions int64      `json:"totalExecutions"`
	LastExecutedAt  *time.Time `json:"lastExecutedAt,omitempty"`

	Variants []Variant `json:"variants"`

	// Compiled holds the typed trigger configuration and conditions.
	// It is populated by CompileRules and never serialized.
	Compiled *Compiled `json:"-"`
}

// Compiled is the pre-processed form of a rule's JSON configuration.
type Compiled struct {
	Trigger    any
	Conditions Conditions
}

// Variant is a weighted alternative action of a rule.
type Variant struct {
	ID            string          `json:"id"`
	RuleID        string          `json:"ruleId"`
	Name          string          `json:"name"`
	ActionType    string          `json:"actionType"`
	ActionPayload json.RawMessage `json:"actionPayload,omitempty"`
	// Weight is relative. Non-positive weights count as 1.
	Weight    float64 `json:"weight"`
	Exposures int64   `json:"exposures"`
}

// Execution is the immutable record of one firing attempt.
type Execution struct {
	ID        string
	RuleID    string
	VariantID *string
	PlayerID  string
	TenantID  string
	Success   bool
	Error     string
	CreatedAt time.Time
}

// Context describes the event that caused an invocation. It is supplied by
// the caller and never persisted.
type Context struct {
	EventName string `json:"eventName,omitempty"`
	// Timestamp is when the triggering event happened. FIRST_DEPOSIT needs it:
	// a zero value means now, which already counts the persisted deposit.
	Timestamp time.Time `json:"timestamp,omitzero"`

	Country    string `json:"country,omitempty"`
	VIPTier    string `json:"vipTier,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
	Age        *int   `json:"age,omitempty"`

	Balance *float64 `json:"balance,omitempty"`
	// Amount is the monetary value of the current event (deposit, bet...).
	Amount *float64 `json:"amount,omitempty"`
	// SessionDuration is expressed in minutes.
	SessionDuration *float64 `json:"sessionDuration,omitempty"`
	GameID          string   `json:"gameId,omitempty"`

	SegmentID string `json:"segmentId,omitempty"`
	// Action is "entry" or "exit" for segment transitions.
	Action string `json:"action,omitempty"`

	// Birthdate and RegistrationDate accept YYYY-MM-DD or RFC 3339.
	Birthdate        string     `json:"birthdate,omitempty"`
	RegistrationDate string     `json:"registrationDate,omitempty"`
	BonusExpiresAt   *time.Time `json:"bonusExpiresAt,omitempty"`
	HasPriorDeposits *bool      `json:"hasPriorDeposits,omitempty"`

	Properties map[string]any `json:"properties,omitempty"`
}

// RuleRepository reads the active rules of a tenant.
type RuleRepository interface {
	// ListActiveRules returns active rules with their variants, priority descending.
	ListActiveRules(ctx context.Context, tenantID string) ([]Rule, error)
}

// ExecutionRepository reads and writes execution records.
type ExecutionRepository interface {
	// CountExecutions counts executions of a rule for a player, failed ones
	// included, created at or after since. A zero since counts all of them.
	CountExecutions(ctx context.Context, ruleID, playerID string, since time.Time) (int64, error)

	// RecordFailure inserts a failed execution. Counters are not touched.
	RecordFailure(ctx context.Context, exec Execution) error

	// RecordSuccess inserts a successful execution and, in the same transaction,
	// increments the variant's exposures and the rule's totalExecutions/lastExecutedAt.
	RecordSuccess(ctx context.Context, exec Execution) error
}

// ActionDispatcher delivers a variant's action to an external collaborator.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, actionType, playerID, tenantID string, payload json.RawMessage) error
}

// LockKey identifies one (tenant, rule, player) admission.
type LockKey struct {
	TenantID string
	RuleID   string
	PlayerID string
}

// Locker serializes admission of a rule for a player across concurrent invocations.
type Locker interface {
	// Acquire returns ErrLockNotAcquired when the key is already held.
	// The returned release func must be called once the execution is persisted.
	Acquire(ctx context.Context, key LockKey, ttl time.Duration) (release func(context.Context) error, err error)
}

// NoopLocker admits every invocation. It reproduces the best-effort behavior
// where concurrent invocations for the same player may both pass the frequency gate.
type NoopLocker struct{}

// Acquire implements Locker.
func (NoopLocker) Acquire(context.Context, LockKey, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
