package notify

import (
	"context"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogNotifier writes notification events to the structured log instead of
// publishing them. It stands in for the Redis notifier when no Redis is
// configured, so development runs still show what would have been sent.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyClientRefunded logs a refund notice for the client.
func (n *LogNotifier) NotifyClientRefunded(_ context.Context, clientRef uuid.UUID, paymentRef string, amount int64, currency string) {
	n.logger.Info("Notification: payment refunded",
		zap.String("user_ref", clientRef.String()),
		zap.String("payment_ref", paymentRef),
		zap.Int64("amount", amount),
		zap.String("currency", currency))
}

// NotifyPayeeSettled logs a settlement notice for the payee.
func (n *LogNotifier) NotifyPayeeSettled(_ context.Context, payeeRef uuid.UUID, paymentRef string, amount int64, currency string) {
	n.logger.Info("Notification: payout settled",
		zap.String("user_ref", payeeRef.String()),
		zap.String("payment_ref", paymentRef),
		zap.Int64("amount", amount),
		zap.String("currency", currency))
}

// Ensure LogNotifier implements Notifier
var _ payment.Notifier = (*LogNotifier)(nil)
