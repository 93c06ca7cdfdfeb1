// Package cache holds the firm rule caches served to the assignment resolver.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"legalnexus/api/internal/store"
)

const rulePrefix = "routing:rules:"

// RedisRuleCache shares active rules between API instances.
type RedisRuleCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRuleCache connects to redisURL and fails when the server is not
// reachable.
func NewRedisRuleCache(redisURL string, ttl time.Duration) (*RedisRuleCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisRuleCacheWithClient(client, ttl), nil
}

func NewRedisRuleCacheWithClient(client *redis.Client, ttl time.Duration) *RedisRuleCache {
	return &RedisRuleCache{
		client: client,
		prefix: rulePrefix,
		ttl:    ttl,
	}
}

func (c *RedisRuleCache) key(firmID string) string {
	return c.prefix + firmID
}

func (c *RedisRuleCache) GetRules(ctx context.Context, firmID string) ([]store.RoutingRule, bool, error) {
	payload, err := c.client.Get(ctx, c.key(firmID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached rules: %w", err)
	}

	var rules []store.RoutingRule
	if err := json.Unmarshal(payload, &rules); err != nil {
		return nil, false, fmt.Errorf("decode cached rules: %w", err)
	}
	return rules, true, nil
}

func (c *RedisRuleCache) SetRules(ctx context.Context, firmID string, rules []store.RoutingRule) error {
	if rules == nil {
		rules = []store.RoutingRule{}
	}
	payload, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	if err := c.client.Set(ctx, c.key(firmID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache rules: %w", err)
	}
	return nil
}

func (c *RedisRuleCache) InvalidateRules(ctx context.Context, firmID string) error {
	if err := c.client.Del(ctx, c.key(firmID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached rules: %w", err)
	}
	return nil
}

func (c *RedisRuleCache) Close() error {
	return c.client.Close()
}

func (c *RedisRuleCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
