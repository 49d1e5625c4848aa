package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/valkyrie/internal/observability"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
)

// RuleCache is an L1 cache of active rule sets keyed by tenant, backed by
// otter (S3-FIFO). Misses fall through to the wrapped repository.
// Cached slices are shared between callers and must be treated as read-only.
type RuleCache struct {
	next  ruleengine.RuleRepository
	store otter.Cache[string, []ruleengine.Rule]
}

var _ ruleengine.RuleRepository = (*RuleCache)(nil)

// NewRuleCache wraps next with a cache holding at most capacity tenants.
// ttl bounds how long a rule change can go unnoticed without an explicit Invalidate.
func NewRuleCache(next ruleengine.RuleRepository, capacity int, ttl time.Duration) (*RuleCache, error) {
	if next == nil {
		panic("cache: rule repository cannot be nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("rule cache ttl must be positive, got %s", ttl)
	}

	store, err := otter.MustBuilder[string, []ruleengine.Rule](capacity).
		CollectStats().
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build rule cache: %w", err)
	}

	return &RuleCache{next: next, store: store}, nil
}

// ListActiveRules implements ruleengine.RuleRepository.
func (c *RuleCache) ListActiveRules(ctx context.Context, tenantID string) ([]ruleengine.Rule, error) {
	if rules, ok := c.store.Get(tenantID); ok {
		observability.RuleCacheHits.Inc()
		return rules, nil
	}
	observability.RuleCacheMisses.Inc()

	rules, err := c.next.ListActiveRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	c.store.Set(tenantID, rules)
	return rules, nil
}

// Invalidate drops the cached rule set of a tenant.
func (c *RuleCache) Invalidate(tenantID string) {
	c.store.Delete(tenantID)
	observability.RuleCacheInvalidations.Inc()
}

// Len returns the number of cached tenants.
func (c *RuleCache) Len() int {
	return c.store.Size()
}

// RunMetricsCollector publishes size and eviction metrics every interval until ctx is cancelled.
func (c *RuleCache) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastEvicted int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.RuleCacheItems.Set(float64(c.store.Size()))
			evicted := c.store.Stats().EvictedCount()
			if evicted > lastEvicted {
				observability.RuleCacheEvictions.Add(float64(evicted - lastEvicted))
			}
			lastEvicted = evicted
		}
	}
}

// Close stops otter's background goroutines.
func (c *RuleCache) Close() {
	c.store.Close()
}
