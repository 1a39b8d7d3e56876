package payment

import (
	"context"

	"github.com/google/uuid"
)

// PayoutCapability is the identity/verification collaborator's view of
// whether a payee can receive external payouts.
type PayoutCapability struct {
	// Verified is true once payout identity verification is complete.
	Verified bool
	// DestinationAccountID is the payee's gateway account for splits
	// and transfers. Only meaningful when Verified.
	DestinationAccountID string
}

// VerificationService reads payee payout-capability flags. Consulted at
// authorization and at capture time.
type VerificationService interface {
	PayoutCapability(ctx context.Context, payeeRef uuid.UUID) (PayoutCapability, error)
}

// AlertPriority ranks operational alerts.
type AlertPriority string

const (
	AlertPriorityLow      AlertPriority = "LOW"
	AlertPriorityMedium   AlertPriority = "MEDIUM"
	AlertPriorityHigh     AlertPriority = "HIGH"
	AlertPriorityCritical AlertPriority = "CRITICAL"
)

// AlertSink receives operational alerts. Delivery is fire-and-forget:
// a sink failure must never fail a payment operation, so implementations
// swallow and log their own errors.
type AlertSink interface {
	Receive(ctx context.Context, alertType string, priority AlertPriority, payload map[string]string)
}

// Notifier emits user-facing notifications (client refund notice, payee
// settlement notice). Fire-and-forget like the alert sink.
type Notifier interface {
	NotifyClientRefunded(ctx context.Context, clientRef uuid.UUID, paymentRef string, amount int64, currency string)
	NotifyPayeeSettled(ctx context.Context, payeeRef uuid.UUID, paymentRef string, amount int64, currency string)
}

// RateLimiter bounds authorization attempts per client over a sliding
// window. Backed by an externally shared TTL'd counter so the limit
// holds under horizontal scale-out.
type RateLimiter interface {
	// Allow records an attempt and reports whether it is within limits.
	Allow(ctx context.Context, clientRef uuid.UUID) (bool, error)
}
