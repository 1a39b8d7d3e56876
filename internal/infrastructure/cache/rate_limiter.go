package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter bounds authorization attempts per client over a
// sliding window. Counters live in Redis with a TTL, so the limit holds
// across instances and needs no in-process state.
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisRateLimiter creates a new RedisRateLimiter
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: "payments:ratelimit:",
		limit:     limit,
		window:    window,
	}
}

// Allow records an attempt for the client and reports whether it is
// within the sliding window limit. Implemented as a sorted set of
// attempt timestamps trimmed to the window.
func (l *RedisRateLimiter) Allow(ctx context.Context, clientRef uuid.UUID) (bool, error) {
	key := l.keyPrefix + clientRef.String()
	now := time.Now()
	windowStart := now.Add(-l.window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return count.Val() <= int64(l.limit), nil
}

// Ensure RedisRateLimiter implements RateLimiter
var _ payment.RateLimiter = (*RedisRateLimiter)(nil)
