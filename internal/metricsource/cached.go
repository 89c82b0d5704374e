package metricsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultCacheTTL bounds how stale a cached value can be.
const DefaultCacheTTL = 30 * time.Second

// missingValue marks a cached "no sample" answer.
const missingValue = "-"

// cache is the subset of *redis.Client used by CachedSource.
type cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedSource is a read-through Redis cache in front of another Source.
// Cache failures fall through to the inner source.
type CachedSource struct {
	inner Source
	cache cache
	ttl   time.Duration
}

// NewCachedSource wraps inner with a Redis cache. A non-positive ttl uses DefaultCacheTTL.
func NewCachedSource(inner Source, client cache, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{inner: inner, cache: client, ttl: ttl}
}

func cacheKey(entityID, metricType string) string {
	return fmt.Sprintf("metric:%s:%s", entityID, metricType)
}

// CurrentValue implements Source.
func (c *CachedSource) CurrentValue(ctx context.Context, entityID, metricType string) (*decimal.Decimal, error) {
	key := cacheKey(entityID, metricType)

	raw, err := c.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		if raw == missingValue {
			return nil, nil
		}
		if value, perr := decimal.NewFromString(raw); perr == nil {
			return &value, nil
		}
		slog.Warn("Discarding malformed cached metric", "key", key, "value", raw)
	case !errors.Is(err, redis.Nil):
		slog.Warn("Metric cache read failed", "key", key, "error", err)
	}

	value, err := c.inner.CurrentValue(ctx, entityID, metricType)
	if err != nil {
		// Errors are not cached; the next cycle retries the source.
		return nil, err
	}

	stored := missingValue
	if value != nil {
		stored = value.String()
	}
	if err := c.cache.Set(ctx, key, stored, c.ttl).Err(); err != nil {
		slog.Warn("Metric cache write failed", "key", key, "error", err)
	}
	return value, nil
}
