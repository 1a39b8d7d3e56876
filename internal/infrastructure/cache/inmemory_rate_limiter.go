package cache

import (
	"context"
	"sync"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/google/uuid"
)

// InMemoryRateLimiter is a process-local sliding-window limiter for
// tests and single-instance development. Production deployments use the
// Redis-backed limiter so the window holds across instances.
type InMemoryRateLimiter struct {
	mu       sync.Mutex
	attempts map[uuid.UUID][]time.Time
	limit    int
	window   time.Duration
}

// NewInMemoryRateLimiter creates a new InMemoryRateLimiter
func NewInMemoryRateLimiter(limit int, window time.Duration) *InMemoryRateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &InMemoryRateLimiter{
		attempts: make(map[uuid.UUID][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow records an attempt and reports whether it is within limits.
func (l *InMemoryRateLimiter) Allow(_ context.Context, clientRef uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.window)

	kept := l.attempts[clientRef][:0]
	for _, t := range l.attempts[clientRef] {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	l.attempts[clientRef] = kept

	return len(kept) <= l.limit, nil
}

// Ensure InMemoryRateLimiter implements RateLimiter
var _ payment.RateLimiter = (*InMemoryRateLimiter)(nil)
