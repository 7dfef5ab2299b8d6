package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimiter implements ports.RateLimiter with a fixed-window counter:
// INCR + EXPIRE on a key scoped by the window id. Used to bound OTP sends
// per phone.
type RateLimiter struct {
	client *goredis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRateLimiter creates a new Redis-backed fixed-window rate limiter.
func NewRateLimiter(client *goredis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: "ratelimit:",
		limit:  int64(limit),
		window: window,
	}
}

// Allow reports whether another action for the key fits in the current
// window.
func (s *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowID := now.Unix() / int64(s.window.Seconds())
	redisKey := fmt.Sprintf("%s%s:%d", s.prefix, key, windowID)

	// Increment counter atomically
	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis rate limit incr: %w", err)
	}

	// Set expiry only on first increment (new window)
	if count == 1 {
		s.client.Expire(ctx, redisKey, s.window+time.Second) // +1s safety margin
	}

	return count <= s.limit, nil
}
