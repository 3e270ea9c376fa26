package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings for the shared cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisCache stores JSON values in Redis so every API instance and Lambda
// container sees the same cached profiles.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisCache wraps an existing client. prefix namespaces every key.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Get decodes the cached value for key into dest
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key for ttl
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, ttl).Err()
}

// Delete removes keys from the cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// Ping checks the connection to the server
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
