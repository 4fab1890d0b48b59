// Package cache is a Redis-backed JSON cache for read-mostly listings.
//
// Entries are invalidated (deleted), never updated in place, on mutating
// operations; a miss always falls back to the store of record, so cache
// failures degrade to extra database reads rather than wrong answers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Standard TTLs per namespace. Invalidation handles correctness; TTLs just
// bound staleness if a delete is ever missed.
const (
	CredentialListTTL = 5 * time.Minute
	AuthTTL           = time.Minute
	SummaryTTL        = time.Minute
	ListingTTL        = 10 * time.Minute
)

// Cache wraps a Redis client with JSON (de)serialization and namespaced keys.
type Cache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, redisURL string, logger *zap.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{rdb: rdb, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Key builds a namespaced cache key.
func Key(namespace string, parts ...string) string {
	return "atlas:" + namespace + ":" + strings.Join(parts, ":")
}

// GetJSON loads key into out. Returns false on miss or any error; errors
// other than a plain miss are logged, since they usually mean Redis trouble.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) bool {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON stores val under key with the given TTL. Failures are logged only:
// a request must never fail because its result could not be cached.
func (c *Cache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) {
	raw, err := json.Marshal(val)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes keys. Safe to call with keys that do not exist.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
