package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soulforge-labs/soulgate/ports"
)

const rateLimitKeyPrefix = "soulgate:ratelimit:"

// RedisRateLimiter is a fixed-window counter backed by a Redis INCR per key.
// The window is pinned by the key's TTL, set when the counter is created.
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter creates a new Redis-backed rate limiter.
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

func (l *RedisRateLimiter) Check(ctx context.Context, key string, maxRequests int, window time.Duration) (ports.RateLimitResult, error) {
	redisKey := rateLimitKeyPrefix + key

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return ports.RateLimitResult{}, fmt.Errorf("failed to count request: %w", err)
	}

	count := incr.Val()
	remaining := time.Duration(ttl.Val())

	// A fresh counter (or one whose expiry was lost) pins the window now.
	if count == 1 || remaining < 0 {
		if err := l.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			return ports.RateLimitResult{}, fmt.Errorf("failed to set window expiry: %w", err)
		}
		remaining = window
	}

	left := maxRequests - int(count)
	if left < 0 {
		left = 0
	}

	return ports.RateLimitResult{
		Allowed:   count <= int64(maxRequests),
		Remaining: left,
		ResetTime: time.Now().Add(remaining),
	}, nil
}

// SweepExpired is a no-op for Redis; counters expire via their TTLs.
func (l *RedisRateLimiter) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}
