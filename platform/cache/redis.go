package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a Redis server, for deployments that run
// more than one API instance behind a load balancer.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed cache from a redis:// URL.
func NewRedis(redisURL string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(opt)}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get returns the value for key, or ok=false when absent.
// Connectivity errors are treated as a miss; the cache is advisory.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return "", false
		}
		return "", false
	}
	return value, true
}

// Set stores value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	_ = r.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes the entry for key.
func (r *Redis) Delete(ctx context.Context, key string) {
	_ = r.client.Del(ctx, key).Err()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Cache = (*Redis)(nil)
