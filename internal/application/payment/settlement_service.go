package payment

import (
	"context"
	"errors"
	"strconv"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementService captures, refunds, and cancels payments, and resolves
// payout routing. Every decision re-reads the gateway's authoritative
// status immediately before acting; the local record is never trusted for
// capture, cancel, or refund.
type SettlementService struct {
	paymentRepo  payment.PaymentRecordRepository
	gateways     payment.GatewayRegistry
	sync         *CrossEntitySync
	verification payment.VerificationService
	payoutConfig payment.PayoutConfigRepository
	notifier     payment.Notifier
	auditRepo    payment.AuditLogRepository
	alerts       payment.AlertSink
	logger       *zap.Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	paymentRepo payment.PaymentRecordRepository,
	gateways payment.GatewayRegistry,
	sync *CrossEntitySync,
	verification payment.VerificationService,
	payoutConfig payment.PayoutConfigRepository,
	notifier payment.Notifier,
	auditRepo payment.AuditLogRepository,
	alerts payment.AlertSink,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		paymentRepo:  paymentRepo,
		gateways:     gateways,
		sync:         sync,
		verification: verification,
		payoutConfig: payoutConfig,
		notifier:     notifier,
		auditRepo:    auditRepo,
		alerts:       alerts,
		logger:       logger,
	}
}

// Capture collects the held funds for an authorized payment. A retried
// capture of an already-captured payment is a no-op returning the same
// captured amount.
func (s *SettlementService) Capture(ctx context.Context, req CapturePaymentRequest) (*PaymentResponse, error) {
	record, err := s.paymentRepo.FindByID(ctx, req.PaymentRef)
	if err != nil {
		return nil, err
	}

	if record.Status == payment.StatusCaptured {
		response := ToPaymentResponse(record)
		return &response, nil
	}
	if record.Status != payment.StatusAuthorized && record.Status != payment.StatusActionRequired {
		return nil, shared.NewDomainError(shared.KindInvalidState, "NOT_CAPTURABLE",
			"payment "+record.ID+" is "+record.Status.String()+", not capturable")
	}

	gateway, err := s.gateways.Gateway(record.GatewayFamily)
	if err != nil {
		return nil, err
	}

	// Authoritative check, never the local cache. A gateway that already
	// captured this authorization means a prior capture landed but the
	// local write was lost: the capture key below is derived solely from
	// the payment id, so the gateway replays the original result instead
	// of collecting twice, and the sync heals the record.
	status, err := gateway.RetrieveStatus(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if status == payment.AuthStatusCaptured {
		s.logger.Warn("Local record lags a gateway capture, replaying to heal",
			zap.String("payment_ref", record.ID),
			zap.String("local_status", record.Status.String()))
	} else if !status.IsCapturable() {
		return nil, shared.NewDomainError(shared.KindBusinessRule, "GATEWAY_NOT_CAPTURABLE",
			"gateway reports "+status.String()+" for payment "+record.ID)
	}

	// Escrow capture proceeds even when payee verification is still
	// incomplete: settlement is never blocked on slow verification, the
	// gap is alerted instead.
	if record.RoutingMode == payment.RoutingEscrowPlatform {
		s.warnIfStillUnverified(ctx, record)
	}

	result, err := gateway.Capture(ctx, record.ID, CaptureIdempotencyKey(record.ID))
	if err != nil {
		s.recordTerminalFailure(ctx, record.ID, "payment.capture_failed", err)
		return nil, err
	}

	sessionRef := req.SessionRef
	updated, err := s.sync.Apply(ctx, record.ID, &sessionRef,
		func(p *payment.PaymentRecord) error {
			return p.MarkCaptured(result.CapturedAmount, result.TransferID)
		},
		map[string]string{
			"status":          payment.StatusCaptured.String(),
			"captured_amount": strconv.FormatInt(result.CapturedAmount, 10),
			"transfer_id":     result.TransferID,
		})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, record.ID, "payment.captured",
		"amount="+strconv.FormatInt(result.CapturedAmount, 10)+" transfer="+result.TransferID)
	s.logger.Info("Payment captured",
		zap.String("payment_ref", record.ID),
		zap.Int64("captured_amount", result.CapturedAmount),
		zap.String("routing_mode", record.RoutingMode.String()))

	response := ToPaymentResponse(updated)
	return &response, nil
}

// Refund reverses a captured payment, fully when no amount is given. The
// routing mode recorded at authorization decides whether the auto-created
// split transfer and the commission portion are reversed too.
func (s *SettlementService) Refund(ctx context.Context, req RefundPaymentRequest) (*PaymentResponse, error) {
	record, err := s.paymentRepo.FindByID(ctx, req.PaymentRef)
	if err != nil {
		return nil, err
	}

	if record.Status == payment.StatusRefunded {
		response := ToPaymentResponse(record)
		return &response, nil
	}
	if record.Status != payment.StatusCaptured {
		return nil, shared.NewDomainError(shared.KindInvalidState, "NOT_REFUNDABLE",
			"payment "+record.ID+" is "+record.Status.String()+", only captured payments refund")
	}

	amount := req.Amount
	if amount <= 0 {
		amount = record.CapturedAmount
	}
	fullRefund := amount == record.CapturedAmount

	gateway, err := s.gateways.Gateway(record.GatewayFamily)
	if err != nil {
		return nil, err
	}

	result, err := gateway.Refund(ctx, payment.RefundRequest{
		AuthorizationID:  record.ID,
		Amount:           amount,
		Reason:           req.Reason,
		IdempotencyKey:   RefundIdempotencyKey(record.ID, amount),
		ReverseTransfer:  record.RoutingMode == payment.RoutingDirectSplit && record.TransferID != "",
		RefundCommission: fullRefund,
	})
	if err != nil {
		s.recordTerminalFailure(ctx, record.ID, "payment.refund_failed", err)
		return nil, err
	}

	sessionRef := record.SessionRef
	updated, err := s.sync.Apply(ctx, record.ID, &sessionRef,
		func(p *payment.PaymentRecord) error {
			return p.MarkRefunded(result.RefundID, result.RefundedAmount)
		},
		map[string]string{
			"status":          payment.StatusRefunded.String(),
			"refund_id":       result.RefundID,
			"refunded_amount": strconv.FormatInt(result.RefundedAmount, 10),
		})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyClientRefunded(ctx, record.ClientRef, record.ID, result.RefundedAmount, record.Currency)
	s.audit(ctx, record.ID, "payment.refunded",
		"amount="+strconv.FormatInt(result.RefundedAmount, 10)+" reason="+req.Reason)
	s.logger.Info("Payment refunded",
		zap.String("payment_ref", record.ID),
		zap.Int64("refunded_amount", result.RefundedAmount),
		zap.Bool("full_refund", fullRefund))

	response := ToPaymentResponse(updated)
	return &response, nil
}

// Cancel voids an uncaptured authorization. The gateway's view wins: a
// payment the gateway already captured fails with AlreadyCaptured no
// matter what the local record says.
func (s *SettlementService) Cancel(ctx context.Context, req CancelPaymentRequest) (*PaymentResponse, error) {
	record, err := s.paymentRepo.FindByID(ctx, req.PaymentRef)
	if err != nil {
		return nil, err
	}

	if record.Status == payment.StatusCancelled {
		response := ToPaymentResponse(record)
		return &response, nil
	}
	if record.Status != payment.StatusAuthorized && record.Status != payment.StatusActionRequired {
		return nil, shared.NewDomainError(shared.KindInvalidState, "NOT_CANCELLABLE",
			"payment "+record.ID+" is "+record.Status.String()+", not cancellable")
	}

	gateway, err := s.gateways.Gateway(record.GatewayFamily)
	if err != nil {
		return nil, err
	}

	status, err := gateway.RetrieveStatus(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if status == payment.AuthStatusCaptured {
		return nil, shared.NewDomainError(shared.KindBusinessRule, "ALREADY_CAPTURED",
			"payment "+record.ID+" was already captured at the gateway")
	}
	if !status.IsCancellable() {
		return nil, shared.NewDomainError(shared.KindBusinessRule, "GATEWAY_NOT_CANCELLABLE",
			"gateway reports "+status.String()+" for payment "+record.ID)
	}

	if err := gateway.Cancel(ctx, record.ID, CancelIdempotencyKey(record.ID)); err != nil {
		s.recordTerminalFailure(ctx, record.ID, "payment.cancel_failed", err)
		return nil, err
	}

	sessionRef := record.SessionRef
	updated, err := s.sync.Apply(ctx, record.ID, &sessionRef,
		func(p *payment.PaymentRecord) error {
			return p.MarkCancelled(req.Reason)
		},
		map[string]string{
			"status":        payment.StatusCancelled.String(),
			"cancel_reason": req.Reason,
		})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, record.ID, "payment.cancelled", "reason="+req.Reason)
	s.logger.Info("Payment cancelled",
		zap.String("payment_ref", record.ID),
		zap.String("reason", req.Reason))

	response := ToPaymentResponse(updated)
	return &response, nil
}

// PayoutDecision resolves the payout route for a payee: a payee-level
// override first, then the configured external-account table, falling
// back to the payee's own account. An override referencing a missing or
// inactive account fails safe to internal retention with a warning.
func (s *SettlementService) PayoutDecision(ctx context.Context, payeeRef uuid.UUID) (payment.PayoutRoute, error) {
	override, err := s.payoutConfig.FindOverrideByPayee(ctx, payeeRef)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return payment.StandardRoute(), nil
		}
		return payment.PayoutRoute{}, err
	}

	if override.Retain {
		s.audit(ctx, "", "payout.retained", "payee="+payeeRef.String())
		return payment.InternalRoute(), nil
	}

	if override.ExternalAccountRef == "" {
		return payment.StandardRoute(), nil
	}

	account, err := s.payoutConfig.FindExternalAccount(ctx, override.ExternalAccountRef)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Payout override references a missing external account, retaining internally",
				zap.String("payee_ref", payeeRef.String()),
				zap.String("account_ref", override.ExternalAccountRef))
			s.audit(ctx, "", "payout.retained",
				"payee="+payeeRef.String()+" missing_account="+override.ExternalAccountRef)
			return payment.InternalRoute(), nil
		}
		return payment.PayoutRoute{}, err
	}
	if !account.Active {
		s.logger.Warn("Payout override references an inactive external account, retaining internally",
			zap.String("payee_ref", payeeRef.String()),
			zap.String("account_ref", account.Ref))
		s.audit(ctx, "", "payout.retained",
			"payee="+payeeRef.String()+" inactive_account="+account.Ref)
		return payment.InternalRoute(), nil
	}

	return payment.ExternalRoute(account.Ref), nil
}

// ExternalAccountID resolves the gateway account for an external route.
func (s *SettlementService) ExternalAccountID(ctx context.Context, route payment.PayoutRoute) (string, error) {
	account, err := s.payoutConfig.FindExternalAccount(ctx, route.AccountRef)
	if err != nil {
		return "", err
	}
	return account.GatewayAccountID, nil
}

// warnIfStillUnverified alerts when escrow funds are being captured for a
// payee whose verification has still not completed.
func (s *SettlementService) warnIfStillUnverified(ctx context.Context, record *payment.PaymentRecord) {
	capability, err := s.verification.PayoutCapability(ctx, record.PayeeRef)
	if err != nil || capability.Verified {
		return
	}
	s.logger.Warn("Capturing escrow payment with payee verification still incomplete",
		zap.String("payment_ref", record.ID),
		zap.String("payee_ref", record.PayeeRef.String()))
	s.alerts.Receive(ctx, "payment.capture_unverified_payee", payment.AlertPriorityLow, map[string]string{
		"payment_ref": record.ID,
		"payee_ref":   record.PayeeRef.String(),
	})
}

// recordTerminalFailure audits and alerts money-affecting terminal
// failures. Transient and circuit-open failures are retried by callers
// and do not alert here.
func (s *SettlementService) recordTerminalFailure(ctx context.Context, paymentRef, action string, err error) {
	if shared.KindOf(err) != shared.KindGatewayRejection {
		return
	}
	s.audit(ctx, paymentRef, action, err.Error())
	s.alerts.Receive(ctx, action, payment.AlertPriorityHigh, map[string]string{
		"payment_ref": paymentRef,
		"error":       err.Error(),
	})
}

func (s *SettlementService) audit(ctx context.Context, paymentRef, action, detail string) {
	entry := &payment.AuditEntry{
		PaymentRef: paymentRef,
		Action:     action,
		Detail:     detail,
		Actor:      "settlement_service",
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry",
			zap.String("action", action), zap.Error(err))
	}
}
