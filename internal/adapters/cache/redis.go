package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL      = 5 * time.Second
	scanBatch       = 100
	defaultPoolSize = 10
)

// RedisCache implements Cache on a redis server.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisCache.
type RedisOption func(*redisOptions)

type redisOptions struct {
	password string
	db       int
	ttl      time.Duration
	poolSize int
}

// WithPassword sets the redis AUTH password.
func WithPassword(password string) RedisOption {
	return func(o *redisOptions) { o.password = password }
}

// WithDB selects the redis database.
func WithDB(db int) RedisOption {
	return func(o *redisOptions) { o.db = db }
}

// WithTTL sets the expiry of cached leaderboards.
func WithTTL(ttl time.Duration) RedisOption {
	return func(o *redisOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithPoolSize sets the client connection pool size.
func WithPoolSize(n int) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr string, opts ...RedisOption) (*RedisCache, error) {
	o := redisOptions{ttl: defaultTTL, poolSize: defaultPoolSize}
	for _, opt := range opts {
		opt(&o)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     o.password,
		DB:           o.db,
		PoolSize:     o.poolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisCache{client: client, ttl: o.ttl}, nil
}

// Get decodes the cached value of key into dst. Returns ErrMiss when the key
// is absent or expired.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Set stores v as JSON under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// InvalidateAll scans for leaderboard keys and deletes them in a pipeline.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
