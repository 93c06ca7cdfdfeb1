package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"legalnexus/api/internal/store"
)

// MaxLocalTTL bounds how long another instance can keep firing a rule that
// was changed elsewhere.
const MaxLocalTTL = 5 * time.Second

// LocalRuleCache is a per-instance LRU used when no Redis is configured.
// Invalidation only reaches the instance that made the change; other
// instances see the update once the entry expires.
type LocalRuleCache struct {
	lru *expirable.LRU[string, []store.RoutingRule]
	ttl time.Duration
}

// NewLocalRuleCache caps ttl at MaxLocalTTL.
func NewLocalRuleCache(size int, ttl time.Duration) *LocalRuleCache {
	if ttl <= 0 || ttl > MaxLocalTTL {
		ttl = MaxLocalTTL
	}
	return &LocalRuleCache{lru: expirable.NewLRU[string, []store.RoutingRule](size, nil, ttl), ttl: ttl}
}

func (c *LocalRuleCache) TTL() time.Duration {
	return c.ttl
}

func (c *LocalRuleCache) GetRules(_ context.Context, firmID string) ([]store.RoutingRule, bool, error) {
	rules, ok := c.lru.Get(firmID)
	if !ok {
		return nil, false, nil
	}
	return append([]store.RoutingRule(nil), rules...), true, nil
}

func (c *LocalRuleCache) SetRules(_ context.Context, firmID string, rules []store.RoutingRule) error {
	c.lru.Add(firmID, append([]store.RoutingRule{}, rules...))
	return nil
}

func (c *LocalRuleCache) InvalidateRules(_ context.Context, firmID string) error {
	c.lru.Remove(firmID)
	return nil
}
