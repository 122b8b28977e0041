package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RedisCache implements Cache on a single Redis node.
type RedisCache struct {
	client *redis.Client
	config *Config
	closed atomic.Bool
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(config *Config) (*RedisCache, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	client := redis.NewClient(&redis.Options{
		Addr:            config.Address(),
		Password:        config.Password,
		DB:              config.DB,
		MaxRetries:      config.MaxRetries,
		MinRetryBackoff: config.MinRetryBackoff,
		MaxRetryBackoff: config.MaxRetryBackoff,
		DialTimeout:     config.DialTimeout,
		ReadTimeout:     config.ReadTimeout,
		WriteTimeout:    config.WriteTimeout,
		PoolSize:        config.PoolSize,
		MinIdleConns:    config.MinIdleConns,
		ConnMaxIdleTime: config.MaxIdleTime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.Address(), err)
	}

	return &RedisCache{client: client, config: config}, nil
}

func (r *RedisCache) check() error {
	if r.closed.Load() {
		return ErrCacheClosed
	}
	return nil
}

// Get retrieves a value from the cache
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, NewCacheError("failed to get key", true).WithError(err)
	}
	return val, nil
}

// Set stores a value in the cache
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.check(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return NewCacheError("failed to set key", true).WithError(err)
	}
	return nil
}

// Delete removes a value from the cache. Deleting a missing key returns ErrKeyNotFound.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.check(); err != nil {
		return err
	}
	result := r.client.Del(ctx, key)
	if err := result.Err(); err != nil {
		return NewCacheError("failed to delete key", true).WithError(err)
	}
	if result.Val() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Exists checks if a key exists in the cache
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	result := r.client.Exists(ctx, key)
	if err := result.Err(); err != nil {
		return false, NewCacheError("failed to check existence", true).WithError(err)
	}
	return result.Val() > 0, nil
}

// GetMultiple retrieves multiple values with a single MGET.
func (r *RedisCache) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, NewCacheError("failed to get multiple keys", true).WithError(err)
	}

	for i, val := range values {
		if s, ok := val.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

// SetMultiple stores multiple values through a pipeline.
func (r *RedisCache) SetMultiple(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if err := r.check(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}

	pipe := r.client.Pipeline()
	for key, value := range items {
		pipe.Set(ctx, key, value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return NewCacheError("failed to set multiple keys", true).WithError(err)
	}
	return nil
}

// DeletePattern scans for keys matching pattern and deletes them in batches.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if err := r.check(); err != nil {
		return 0, err
	}

	deleted := 0
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return NewCacheError("failed to delete keys", true).WithError(err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, NewCacheError("failed to scan keys", true).WithError(err)
	}
	return deleted, flush()
}

// Ping checks if the cache is healthy
func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return NewCacheError("ping failed", true).WithError(err)
	}
	return nil
}

// Close closes the cache connection. It is safe to call more than once.
func (r *RedisCache) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.client.Close()
}

// Stats returns Redis connection pool stats
func (r *RedisCache) Stats() *redis.PoolStats {
	return r.client.PoolStats()
}

// TTL returns the remaining time to live of a key; zero means no expiry.
func (r *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, NewCacheError("failed to get TTL", true).WithError(err)
	}
	switch ttl {
	case -2 * time.Nanosecond:
		return 0, ErrKeyNotFound
	case -1 * time.Nanosecond:
		return 0, nil
	}
	return ttl, nil
}
