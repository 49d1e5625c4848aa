// Package segment evaluates AND-composed fact comparisons to decide which
// players belong to a tenant's segments, and recomputes stored membership.
package segment

import (
	"context"
	"errors"
	"time"

	"github.com/rafaeljc/valkyrie/internal/facts"
)

// Operator is the comparison applied between a computed fact and a rule value.
type Operator string

const (
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpGreaterThan        Operator = "greaterThan"
	OpLessThan           Operator = "lessThan"
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "notEquals"
)

// ErrUnknownOperator is returned by Compare for operators outside the supported set.
var ErrUnknownOperator = errors.New("unknown operator")

// Rule is one fact comparison inside a segment's criteria.
type Rule struct {
	Fact         facts.Name `json:"fact"`
	Operator     Operator   `json:"operator"`
	Value        float64    `json:"value"`
	PeriodInDays *int       `json:"periodInDays,omitempty"`
}

// Criteria is the ordered rule list of a segment. Membership is the AND of all rules.
type Criteria struct {
	Rules []Rule `json:"rules"`
}

// Segment is a tenant-scoped named group of players.
type Segment struct {
	ID        string
	TenantID  string
	Name      string
	Criteria  Criteria
	UpdatedAt time.Time
}

// TransitionAction names the direction of a membership change.
type TransitionAction string

const (
	ActionEntry TransitionAction = "entry"
	ActionExit  TransitionAction = "exit"
)

// Transition is a membership change observed by a recomputation.
type Transition struct {
	SegmentID string           `json:"segmentId"`
	PlayerID  string           `json:"playerId"`
	Action    TransitionAction `json:"action"`
}

// FactComputer resolves facts for the evaluator. *facts.Provider implements it.
type FactComputer interface {
	Compute(ctx context.Context, name facts.Name, playerID, tenantID string, periodInDays *int) (float64, error)
}

// Repository is the persistence contract of the evaluator.
type Repository interface {
	// ListSegments returns every segment of a tenant.
	ListSegments(ctx context.Context, tenantID string) ([]Segment, error)

	// GetSegment returns one segment or store.ErrNotFound.
	GetSegment(ctx context.Context, tenantID, segmentID string) (*Segment, error)

	// ListPlayers returns up to limit known player IDs strictly greater than afterID, ascending.
	ListPlayers(ctx context.Context, tenantID, afterID string, limit int) ([]string, error)

	// ReplaceMembers sets the membership of a segment to exactly playerIDs in one
	// transaction and reports which players entered and exited.
	ReplaceMembers(ctx context.Context, segmentID string, playerIDs []string) (entered, exited []string, err error)
}
