// Package cache stores scored lead lists in Redis, keyed by search parameters.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sitesignal/packages/domain"
	"sitesignal/packages/metrics"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis used here.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type LeadCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewRedis(client RedisClient, ttl time.Duration) *LeadCache {
	return &LeadCache{client: client, ttl: ttl}
}

// Get reports a miss with ok=false and a nil error.
func (c *LeadCache) Get(ctx context.Context, key string) ([]domain.Lead, bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	var leads []domain.Lead
	if err := json.Unmarshal([]byte(raw), &leads); err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return leads, true, nil
}

func (c *LeadCache) Set(ctx context.Context, key string, leads []domain.Lead) error {
	data, err := json.Marshal(leads)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
