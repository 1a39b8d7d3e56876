package alerting

import (
	"context"

	"github.com/consultpay/backend/internal/domain/payment"
	"go.uber.org/zap"
)

// LogAlertSink writes operational alerts to the structured log. It is
// the terminal sink in deployments without a paging integration.
type LogAlertSink struct {
	logger *zap.Logger
}

// NewLogAlertSink creates a new LogAlertSink
func NewLogAlertSink(logger *zap.Logger) *LogAlertSink {
	return &LogAlertSink{logger: logger}
}

// Receive logs the alert. Never returns an error by contract.
func (s *LogAlertSink) Receive(_ context.Context, alertType string, priority payment.AlertPriority, payload map[string]string) {
	fields := make([]zap.Field, 0, len(payload)+2)
	fields = append(fields,
		zap.String("alert_type", alertType),
		zap.String("priority", string(priority)))
	for k, v := range payload {
		fields = append(fields, zap.String(k, v))
	}

	switch priority {
	case payment.AlertPriorityCritical, payment.AlertPriorityHigh:
		s.logger.Error("Operational alert", fields...)
	default:
		s.logger.Warn("Operational alert", fields...)
	}
}

// Ensure LogAlertSink implements AlertSink
var _ payment.AlertSink = (*LogAlertSink)(nil)
