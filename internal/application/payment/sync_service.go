package payment

import (
	"context"
	"errors"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/session"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CrossEntitySync atomically updates a payment record and the payment
// sub-state of its correlated session. All reads happen before all
// writes within the transaction; violating that ordering under the
// store's transaction model is a known pitfall.
type CrossEntitySync struct {
	scope  TransactionScope
	alerts payment.AlertSink
	logger *zap.Logger
}

// NewCrossEntitySync creates a new CrossEntitySync
func NewCrossEntitySync(scope TransactionScope, alerts payment.AlertSink, logger *zap.Logger) *CrossEntitySync {
	return &CrossEntitySync{scope: scope, alerts: alerts, logger: logger}
}

// Apply mutates the payment record and projects the given fields onto the
// correlated session under the payment namespace. A nil sessionRef or a
// missing session never fails the payment-side update: the gap is logged
// and alerted for manual reconciliation instead.
func (s *CrossEntitySync) Apply(
	ctx context.Context,
	paymentRef string,
	sessionRef *uuid.UUID,
	mutate func(*payment.PaymentRecord) error,
	fields map[string]string,
) (*payment.PaymentRecord, error) {
	var record *payment.PaymentRecord
	var sessionMissing bool

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		// Reads first.
		found, err := repos.Payments().FindByID(ctx, paymentRef)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError(shared.KindConsistency, "PAYMENT_NOT_FOUND",
					"payment "+paymentRef+" not found during cross-entity sync")
			}
			return err
		}
		record = found

		var sess *session.ConsultationSession
		if sessionRef != nil {
			sess, err = repos.Sessions().FindByID(ctx, *sessionRef)
			if err != nil {
				if !errors.Is(err, shared.ErrNotFound) {
					return err
				}
				sessionMissing = true
			}
		}

		// Writes follow.
		if mutate != nil {
			if err := mutate(record); err != nil {
				return err
			}
		}
		if err := repos.Payments().Save(ctx, record); err != nil {
			return err
		}
		if sess != nil && len(fields) > 0 {
			sess.ApplyPaymentState(fields)
			if err := repos.Sessions().Save(ctx, sess); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if shared.IsKind(err, shared.KindConsistency) {
			s.alertGap(ctx, paymentRef, sessionRef, "payment record missing")
		}
		return nil, err
	}

	if sessionRef == nil {
		s.logger.Warn("Cross-entity sync without a correlated session, consistency at risk",
			zap.String("payment_ref", paymentRef))
		s.alertGap(ctx, paymentRef, nil, "no correlated session supplied")
	} else if sessionMissing {
		s.logger.Warn("Correlated session missing during cross-entity sync",
			zap.String("payment_ref", paymentRef),
			zap.String("session_ref", sessionRef.String()))
		s.alertGap(ctx, paymentRef, sessionRef, "correlated session missing")
	}

	return record, nil
}

// alertGap raises a consistency alert. Fire-and-forget by contract.
func (s *CrossEntitySync) alertGap(ctx context.Context, paymentRef string, sessionRef *uuid.UUID, detail string) {
	payload := map[string]string{
		"payment_ref": paymentRef,
		"detail":      detail,
	}
	if sessionRef != nil {
		payload["session_ref"] = sessionRef.String()
	}
	s.alerts.Receive(ctx, "payment.sync.consistency_gap", payment.AlertPriorityHigh, payload)
}
