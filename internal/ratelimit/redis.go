package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the sorted sets holding request timestamps
const DefaultKeyPrefix = "contact:ratelimit:"

// slidingWindowScript prunes, counts and conditionally records a request in
// one round trip. Scores are epoch milliseconds. Returns 1 if admitted.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter keeps request timestamps in Redis sorted sets so several server
// instances share one limit. Keys expire one window after the last accepted
// request, which bounds growth without a sweep.
type RedisLimiter struct {
	client    *redis.Client
	opts      Options
	keyPrefix string
	now       func() time.Time
}

// NewRedisClient parses redisURL and verifies the connection.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewRedisLimiter creates a Redis-backed sliding-window limiter.
func NewRedisLimiter(client *redis.Client, opts Options) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		opts:      opts.withDefaults(),
		keyPrefix: DefaultKeyPrefix,
		now:       time.Now,
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	admitted, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.keyPrefix + identity},
		l.now().UnixMilli(),
		l.opts.Window.Milliseconds(),
		l.opts.MaxRequests,
		uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return admitted == 1, nil
}

// Count returns how many requests identity has inside the current window.
func (l *RedisLimiter) Count(ctx context.Context, identity string) (int64, error) {
	cutoff := l.now().Add(-l.opts.Window).UnixMilli()
	return l.client.ZCount(ctx, l.keyPrefix+identity, fmt.Sprintf("(%d", cutoff), "+inf").Result()
}

// Reset forgets all recorded requests for identity.
func (l *RedisLimiter) Reset(ctx context.Context, identity string) error {
	return l.client.Del(ctx, l.keyPrefix+identity).Err()
}

// Ping checks if Redis is reachable
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
