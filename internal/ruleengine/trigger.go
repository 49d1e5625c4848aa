package ruleengine

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/rafaeljc/valkyrie/internal/facts"
)

// TriggerInput is everything a trigger predicate may inspect.
type TriggerInput struct {
	PlayerID string
	TenantID string
	// Config is the compiled trigger configuration (see CompileRules).
	Config  any
	Context Context
	Now     time.Time
}

// TriggerFunc decides whether a rule should fire. Errors report data-access
// failures or a compiled config of the wrong type; missing context values
// simply yield false.
type TriggerFunc func(ctx context.Context, events facts.EventReader, in TriggerInput) (bool, error)

// TriggerSet is the dispatch table from trigger type to predicate.
type TriggerSet map[TriggerType]TriggerFunc

// DefaultTriggers returns a fresh table containing every built-in trigger.
// Callers may add or override entries before handing it to the engine.
func DefaultTriggers() TriggerSet {
	return TriggerSet{
		TriggerInactivity:             inactivity,
		TriggerEvent:                  eventMatch,
		TriggerSegmentEntry:           segmentTransition("entry"),
		TriggerSegmentExit:            segmentTransition("exit"),
		TriggerTimeBased:              timeBased,
		TriggerDepositThreshold:       amountThreshold(facts.EventDepositSuccess),
		TriggerWithdrawalThreshold:    amountThreshold(facts.EventWithdrawal),
		TriggerLoginStreak:            loginStreak,
		TriggerLossStreak:             betStreak(betLoss),
		TriggerWinStreak:              betStreak(betWin),
		TriggerFirstDeposit:           firstDeposit,
		TriggerBirthday:               birthday,
		TriggerAccountAnniversary:     accountAnniversary,
		TriggerLowBalance:             lowBalance,
		TriggerHighBalance:            highBalance,
		TriggerGameSpecific:           gameSpecific,
		TriggerBetSize:                betSize,
		TriggerSessionDuration:        sessionDuration,
		TriggerMultipleFailedDeposits: multipleFailedDeposits,
		TriggerRTPThreshold:           rtpThreshold,
		TriggerBonusExpiry:            bonusExpiry,
	}
}

// Clone returns a shallow copy of the table.
func (s TriggerSet) Clone() TriggerSet {
	return maps.Clone(s)
}

// config asserts the compiled configuration type of a built-in trigger.
func config[T any](in TriggerInput) (T, error) {
	c, ok := in.Config.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("invalid trigger config type: expected %T, got %T", zero, in.Config)
	}
	return c, nil
}

// eventTime is the timestamp of the triggering event, or now when the caller
// did not provide one.
func eventTime(in TriggerInput) time.Time {
	if in.Context.Timestamp.IsZero() {
		return in.Now
	}
	return in.Context.Timestamp
}

func query(in TriggerInput, names ...string) facts.Query {
	return facts.Query{TenantID: in.TenantID, PlayerID: in.PlayerID, Names: names}
}
