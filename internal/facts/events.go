// Package facts computes scalar facts about a player from the historical event log.
// Every fact is a read-only aggregation; nothing in this package mutates state.
package facts

import (
	"context"
	"time"
)

// Event names written by the collection script that the core aggregates over.
const (
	EventLogin          = "login"
	EventDepositSuccess = "deposit_success"
	EventDepositFailed  = "deposit_failed"
	EventWithdrawal     = "withdrawal"
	EventBetResult      = "bet_result"
	EventSessionStart   = "session_start"
)

// Event is one row of the tenant's event log.
type Event struct {
	ID         int64
	TenantID   string
	PlayerID   string
	Name       string
	Properties map[string]any
	OccurredAt time.Time
}

// Amount returns the numeric "amount" property, or 0 when it is absent or not numeric.
func (e Event) Amount() float64 {
	v, _ := e.Number("amount")
	return v
}

// Number returns a property coerced to float64.
func (e Event) Number(key string) (float64, bool) {
	raw, ok := e.Properties[key]
	if !ok {
		return 0, false
	}
	v, err := ToFloat64(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// String returns a string property, or "" when absent.
func (e Event) String(key string) string {
	if s, ok := e.Properties[key].(string); ok {
		return s
	}
	return ""
}

// Query selects events for one (tenant, player) pair.
// Zero Since/Until mean the range is open on that side; Since is inclusive, Until exclusive.
type Query struct {
	TenantID string
	PlayerID string
	// Names restricts the event names. Empty matches every event.
	Names []string
	Since time.Time
	Until time.Time
	// Limit caps ListEvents results. Zero means no limit.
	Limit int
}

// EventReader is the read contract the core needs from the event log.
type EventReader interface {
	// CountEvents returns the number of matching events.
	CountEvents(ctx context.Context, q Query) (int64, error)

	// SumAmount returns the sum of the numeric "amount" property over matching events.
	SumAmount(ctx context.Context, q Query) (float64, error)

	// ListEvents returns matching events ordered newest first.
	ListEvents(ctx context.Context, q Query) ([]Event, error)
}
