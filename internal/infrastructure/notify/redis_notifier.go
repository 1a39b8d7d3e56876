package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	clientChannel = "notifications:clients"
	payeeChannel  = "notifications:payees"
)

// RedisNotifier publishes user-facing notification events to Redis
// channels consumed by the messaging pipeline. Delivery is
// fire-and-forget: publish failures are logged, never returned.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier creates a new RedisNotifier
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

type notificationEvent struct {
	Type       string    `json:"type"`
	UserRef    uuid.UUID `json:"user_ref"`
	PaymentRef string    `json:"payment_ref"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NotifyClientRefunded publishes a refund notice for the client.
func (n *RedisNotifier) NotifyClientRefunded(ctx context.Context, clientRef uuid.UUID, paymentRef string, amount int64, currency string) {
	n.publish(ctx, clientChannel, notificationEvent{
		Type:       "payment.refunded",
		UserRef:    clientRef,
		PaymentRef: paymentRef,
		Amount:     amount,
		Currency:   currency,
		OccurredAt: time.Now(),
	})
}

// NotifyPayeeSettled publishes a settlement notice for the payee.
func (n *RedisNotifier) NotifyPayeeSettled(ctx context.Context, payeeRef uuid.UUID, paymentRef string, amount int64, currency string) {
	n.publish(ctx, payeeChannel, notificationEvent{
		Type:       "payout.settled",
		UserRef:    payeeRef,
		PaymentRef: paymentRef,
		Amount:     amount,
		Currency:   currency,
		OccurredAt: time.Now(),
	})
}

func (n *RedisNotifier) publish(ctx context.Context, channel string, event notificationEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Failed to marshal notification", zap.Error(err))
		return
	}
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		n.logger.Warn("Failed to publish notification",
			zap.String("channel", channel),
			zap.String("type", event.Type),
			zap.Error(err))
	}
}

// Ensure RedisNotifier implements Notifier
var _ payment.Notifier = (*RedisNotifier)(nil)
