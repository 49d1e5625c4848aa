// Package ruleenginetest provides in-memory repositories and scripted
// collaborators for exercising the rule engine in tests.
package ruleenginetest

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rafaeljc/valkyrie/internal/ruleengine"
)

var (
	_ ruleengine.RuleRepository      = (*MemoryStore)(nil)
	_ ruleengine.ExecutionRepository = (*MemoryStore)(nil)
	_ ruleengine.ActionDispatcher    = (*RecordingDispatcher)(nil)
	_ ruleengine.RandSource          = (*ScriptedRand)(nil)
)

// MemoryStore holds rules and executions in memory.
type MemoryStore struct {
	mu         sync.Mutex
	rules      []ruleengine.Rule
	executions []ruleengine.Execution

	// RulesErr and CountErr, when set, fail the corresponding reads.
	RulesErr error
	CountErr error
}

// NewMemoryStore returns a store seeded with rules.
func NewMemoryStore(rules ...ruleengine.Rule) *MemoryStore {
	return &MemoryStore{rules: rules}
}

// AddExecution seeds a prior execution.
func (m *MemoryStore) AddExecution(exec ruleengine.Execution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, exec)
}

// Executions returns a copy of every recorded execution.
func (m *MemoryStore) Executions() []ruleengine.Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.executions)
}

// Rule returns the current state of a rule, including its counters.
func (m *MemoryStore) Rule(id string) (ruleengine.Rule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			return r, true
		}
	}
	return ruleengine.Rule{}, false
}

// ListActiveRules implements ruleengine.RuleRepository.
func (m *MemoryStore) ListActiveRules(_ context.Context, tenantID string) ([]ruleengine.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RulesErr != nil {
		return nil, m.RulesErr
	}
	var out []ruleengine.Rule
	for _, r := range m.rules {
		if r.TenantID == tenantID && r.Active {
			r.Variants = slices.Clone(r.Variants)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

// CountExecutions implements ruleengine.ExecutionRepository.
func (m *MemoryStore) CountExecutions(_ context.Context, ruleID, playerID string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	var n int64
	for _, e := range m.executions {
		if e.RuleID == ruleID && e.PlayerID == playerID && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// RecordFailure implements ruleengine.ExecutionRepository.
func (m *MemoryStore) RecordFailure(_ context.Context, exec ruleengine.Execution) error {
	if exec.Success {
		return errors.New("RecordFailure called with a successful execution")
	}
	m.AddExecution(exec)
	return nil
}

// RecordSuccess implements ruleengine.ExecutionRepository.
func (m *MemoryStore) RecordSuccess(_ context.Context, exec ruleengine.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, exec)
	for i := range m.rules {
		r := &m.rules[i]
		if r.ID != exec.RuleID {
			continue
		}
		r.TotalExecutions++
		at := exec.CreatedAt
		r.LastExecutedAt = &at
		for j := range r.Variants {
			if exec.VariantID != nil && r.Variants[j].ID == *exec.VariantID {
				r.Variants[j].Exposures++
			}
		}
	}
	return nil
}

// Delivery is one call observed by RecordingDispatcher.
type Delivery struct {
	ActionType string
	PlayerID   string
	TenantID   string
	Payload    json.RawMessage
}

// RecordingDispatcher records deliveries and fails the action types listed in Fail.
type RecordingDispatcher struct {
	mu         sync.Mutex
	deliveries []Delivery
	Fail       map[string]error
}

// Dispatch implements ruleengine.ActionDispatcher.
func (d *RecordingDispatcher) Dispatch(_ context.Context, actionType, playerID, tenantID string, payload json.RawMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, Delivery{ActionType: actionType, PlayerID: playerID, TenantID: tenantID, Payload: payload})
	return d.Fail[actionType]
}

// Deliveries returns a copy of every recorded delivery.
func (d *RecordingDispatcher) Deliveries() []Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.deliveries)
}

// ScriptedRand returns its values in order and then repeats the last one.
type ScriptedRand struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewScriptedRand creates a ScriptedRand. Values must lie in [0, 1).
func NewScriptedRand(values ...float64) *ScriptedRand {
	return &ScriptedRand{values: values}
}

// Float64 implements ruleengine.RandSource.
func (s *ScriptedRand) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[min(s.next, len(s.values)-1)]
	s.next++
	return v
}
