package alerting

import (
	"context"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DeduplicatingSink bounds alert cardinality: one alert per failure class
// per day, not one per instance. Dedup state lives in Redis with a TTL so
// the bound holds across instances. A Redis failure falls through to
// delivery; suppressing alerts because the dedup store is down would hide
// exactly the incidents alerts exist for.
type DeduplicatingSink struct {
	next      payment.AlertSink
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewDeduplicatingSink creates a new DeduplicatingSink
func NewDeduplicatingSink(next payment.AlertSink, client *redis.Client, logger *zap.Logger) *DeduplicatingSink {
	return &DeduplicatingSink{
		next:      next,
		client:    client,
		keyPrefix: "alerts:dedup:",
		logger:    logger,
	}
}

// Receive forwards the alert unless one of the same class was already
// raised today.
func (s *DeduplicatingSink) Receive(ctx context.Context, alertType string, priority payment.AlertPriority, payload map[string]string) {
	now := time.Now().UTC()
	key := s.keyPrefix + alertType + ":" + now.Format("2006-01-02")
	ttl := time.Until(now.Truncate(24 * time.Hour).Add(24 * time.Hour))

	fresh, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		s.logger.Warn("Alert dedup store unavailable, forwarding alert",
			zap.String("alert_type", alertType), zap.Error(err))
		s.next.Receive(ctx, alertType, priority, payload)
		return
	}
	if !fresh {
		s.logger.Debug("Alert suppressed by daily dedup",
			zap.String("alert_type", alertType))
		return
	}
	s.next.Receive(ctx, alertType, priority, payload)
}

// Ensure DeduplicatingSink implements AlertSink
var _ payment.AlertSink = (*DeduplicatingSink)(nil)
