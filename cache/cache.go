package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is a JSON read-through layer over Redis for catalog reads. It is
// strictly best-effort: a nil Cache, a miss, or a Redis outage all degrade
// to the underlying database read, and write failures are logged and
// swallowed. Stock checks and checkout never read through here; they work
// on locked Postgres rows.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a Cache with the given entry TTL.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// NewRedisClient initializes a Redis client from a redis:// URL and
// verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// ProductKey is the cache key for a single product.
func ProductKey(id string) string {
	return "product:" + id
}

// CategoryTreeKey is the cache key for the category tree, split by
// active-only and full views.
func CategoryTreeKey(activeOnly bool) string {
	if activeOnly {
		return "categories:tree:active"
	}
	return "categories:tree:all"
}

// Get unmarshals the cached value into dest, reporting whether it hit.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		c.logger.Warn("Cache entry corrupt, dropping", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		return false
	}
	return true
}

// Set stores v under key for the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete drops keys after a write to the underlying rows.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
