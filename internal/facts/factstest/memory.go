// Package factstest provides an in-memory event log for tests.
package factstest

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/rafaeljc/valkyrie/internal/facts"
)

var _ facts.EventReader = (*MemoryLog)(nil)

// MemoryLog is a thread-safe facts.EventReader backed by a slice.
type MemoryLog struct {
	mu     sync.RWMutex
	events []facts.Event
	// Err, when set, is returned by every read.
	Err error
}

// NewMemoryLog returns a log seeded with events.
func NewMemoryLog(events ...facts.Event) *MemoryLog {
	l := &MemoryLog{}
	l.Add(events...)
	return l
}

// Add appends events to the log.
func (l *MemoryLog) Add(events ...facts.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range events {
		if e.ID == 0 {
			e.ID = int64(len(l.events) + 1)
		}
		l.events = append(l.events, e)
	}
}

// Players returns the distinct player IDs recorded for a tenant, sorted.
func (l *MemoryLog) Players(tenantID string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range l.events {
		if e.TenantID == tenantID {
			seen[e.PlayerID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *MemoryLog) match(q facts.Query) []facts.Event {
	var out []facts.Event
	for _, e := range l.events {
		if e.TenantID != q.TenantID || e.PlayerID != q.PlayerID {
			continue
		}
		if len(q.Names) > 0 && !slices.Contains(q.Names, e.Name) {
			continue
		}
		if !q.Since.IsZero() && e.OccurredAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !e.OccurredAt.Before(q.Until) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}

// CountEvents implements facts.EventReader.
func (l *MemoryLog) CountEvents(_ context.Context, q facts.Query) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.Err != nil {
		return 0, l.Err
	}
	return int64(len(l.match(q))), nil
}

// SumAmount implements facts.EventReader.
func (l *MemoryLog) SumAmount(_ context.Context, q facts.Query) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.Err != nil {
		return 0, l.Err
	}
	var sum float64
	for _, e := range l.match(q) {
		sum += e.Amount()
	}
	return sum, nil
}

// ListEvents implements facts.EventReader.
func (l *MemoryLog) ListEvents(_ context.Context, q facts.Query) ([]facts.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.Err != nil {
		return nil, l.Err
	}
	out := l.match(q)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
