package payment

import (
	"context"
	"errors"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuthorizeService validates a payment request, decides escrow-vs-direct
// routing, and creates the gateway authorization in manual-capture mode.
type AuthorizeService struct {
	guard        *DuplicateGuard
	pricing      *PricingService
	verification payment.VerificationService
	gateways     payment.GatewayRegistry
	paymentRepo  payment.PaymentRecordRepository
	transferRepo payment.PendingTransferRepository
	rateLimiter  payment.RateLimiter
	auditRepo    payment.AuditLogRepository
	alerts       payment.AlertSink
	bounds       map[string]shared.AmountBounds
	logger       *zap.Logger
}

// NewAuthorizeService creates a new AuthorizeService
func NewAuthorizeService(
	guard *DuplicateGuard,
	pricing *PricingService,
	verification payment.VerificationService,
	gateways payment.GatewayRegistry,
	paymentRepo payment.PaymentRecordRepository,
	transferRepo payment.PendingTransferRepository,
	rateLimiter payment.RateLimiter,
	auditRepo payment.AuditLogRepository,
	alerts payment.AlertSink,
	bounds map[string]shared.AmountBounds,
	logger *zap.Logger,
) *AuthorizeService {
	return &AuthorizeService{
		guard:        guard,
		pricing:      pricing,
		verification: verification,
		gateways:     gateways,
		paymentRepo:  paymentRepo,
		transferRepo: transferRepo,
		rateLimiter:  rateLimiter,
		auditRepo:    auditRepo,
		alerts:       alerts,
		bounds:       bounds,
		logger:       logger,
	}
}

// Authorize runs the full authorization flow. A retried request with the
// same (client, payee, session, amount) resolves to the pre-existing
// authorization instead of creating a second one.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizePaymentRequest) (*PaymentResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	if err := s.checkRateLimit(ctx, req); err != nil {
		return nil, err
	}

	if err := s.pricing.VerifyAmount(ctx, req.ServiceKind, req.Currency, req.DiscountCode, req.Amount); err != nil {
		return nil, err
	}

	capability := s.payoutCapability(ctx, req)
	mode := payment.RoutingEscrowPlatform
	if capability.Verified {
		mode = payment.RoutingDirectSplit
	}

	key := payment.LockKey{
		ClientRef: req.ClientRef,
		PayeeRef:  req.PayeeRef,
		Amount:    req.Amount,
		Currency:  req.Currency,
	}
	handle, err := s.guard.Acquire(ctx, key, req.SessionRef)
	if err != nil {
		return nil, err
	}

	response, err := s.authorizeLocked(ctx, req, mode, capability, handle)
	if err != nil {
		handle.Release(ctx)
		return nil, err
	}
	return response, nil
}

// authorizeLocked performs the gateway call and persistence while the
// duplicate-guard lock is held.
func (s *AuthorizeService) authorizeLocked(
	ctx context.Context,
	req AuthorizePaymentRequest,
	mode payment.RoutingMode,
	capability payment.PayoutCapability,
	handle *LockHandle,
) (*PaymentResponse, error) {
	idemKey := AuthorizeIdempotencyKey(req.ClientRef, req.PayeeRef, req.SessionRef, req.Amount)

	gateway := s.gateways.Default()
	authReq := payment.AuthorizeRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		ClientRef:      req.ClientRef.String(),
		Description:    req.Description,
		IdempotencyKey: idemKey,
		Metadata: map[string]string{
			"session_ref":  req.SessionRef.String(),
			"payee_ref":    req.PayeeRef.String(),
			"service_kind": string(req.ServiceKind),
			"routing_mode": mode.String(),
		},
	}
	if mode == payment.RoutingDirectSplit {
		authReq.Split = &payment.SplitDescriptor{
			DestinationAccountID: capability.DestinationAccountID,
			FeeAmount:            req.Commission,
		}
	}

	result, err := gateway.Authorize(ctx, authReq)
	if err != nil {
		s.recordAuthorizationFailure(ctx, req, err)
		return nil, err
	}

	if result.ExistingAuthorization {
		existing, err := s.paymentRepo.FindByIdempotencyKey(ctx, idemKey)
		if err == nil {
			// The gateway collided on the idempotency key and we already
			// hold the record from the earlier attempt.
			if bindErr := handle.Bind(ctx, existing.ID); bindErr != nil {
				s.logger.Warn("Failed to bind lock to pre-existing payment",
					zap.String("payment_ref", existing.ID), zap.Error(bindErr))
			}
			response := ToPaymentResponse(existing)
			return &response, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		// Authorized at the gateway but never persisted locally, most
		// likely a crash between the two steps. Fall through and persist.
		s.logger.Warn("Recovered gateway authorization with no local record",
			zap.String("authorization_id", result.AuthorizationID))
	}

	record, err := payment.NewPaymentRecord(
		result.AuthorizationID,
		req.ClientRef, req.PayeeRef, req.SessionRef,
		req.ServiceKind,
		req.Amount, req.Commission, req.PayeeShare,
		req.Currency,
		mode,
		gateway.Family(),
		capability.Verified,
		idemKey,
	)
	if err != nil {
		return nil, err
	}
	if result.Status == payment.AuthStatusRequiresAction {
		if err := record.MarkActionRequired(); err != nil {
			return nil, err
		}
	}

	if err := s.paymentRepo.Save(ctx, record); err != nil {
		return nil, err
	}

	if mode == payment.RoutingEscrowPlatform {
		transfer, err := payment.NewPendingTransfer(record.ID, req.PayeeRef, req.PayeeShare, req.Currency)
		if err != nil {
			return nil, err
		}
		if err := s.transferRepo.Save(ctx, transfer); err != nil {
			return nil, err
		}
	}

	if err := handle.Bind(ctx, record.ID); err != nil {
		s.logger.Warn("Failed to bind lock to payment",
			zap.String("payment_ref", record.ID), zap.Error(err))
	}

	s.audit(ctx, record.ID, "payment.authorized",
		"mode="+mode.String()+" family="+gateway.Family().String())

	s.logger.Info("Payment authorized",
		zap.String("payment_ref", record.ID),
		zap.String("routing_mode", mode.String()),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency),
		zap.Bool("payee_verified", capability.Verified))

	response := ToPaymentResponse(record)
	return &response, nil
}

// validate enforces the request-shape rules that need no collaborator.
func (s *AuthorizeService) validate(req AuthorizePaymentRequest) error {
	if !req.ServiceKind.IsValid() {
		return shared.NewDomainError(shared.KindValidation, "INVALID_SERVICE_KIND",
			"unknown service kind "+string(req.ServiceKind))
	}
	if req.ClientRef == req.PayeeRef {
		return shared.NewDomainError(shared.KindValidation, "SELF_PAYMENT",
			"client and payee must differ")
	}
	bounds, ok := s.bounds[req.Currency]
	if !ok {
		return shared.NewDomainError(shared.KindValidation, "UNSUPPORTED_CURRENCY",
			"no amount bounds configured for currency "+req.Currency)
	}
	if !bounds.Contains(req.Amount) {
		return shared.NewDomainError(shared.KindValidation, "AMOUNT_OUT_OF_BOUNDS",
			"amount is outside the configured bounds for "+req.Currency)
	}
	if !shared.AmountsCoherent(req.Amount, req.Commission, req.PayeeShare) {
		return shared.NewDomainError(shared.KindValidation, "AMOUNT_INCOHERENT",
			"commission plus payee share does not match amount within tolerance")
	}
	return nil
}

// checkRateLimit enforces the per-client sliding window. A limiter
// backend failure does not reject payments; the limiter exists to bound
// abuse, not to gate correctness.
func (s *AuthorizeService) checkRateLimit(ctx context.Context, req AuthorizePaymentRequest) error {
	allowed, err := s.rateLimiter.Allow(ctx, req.ClientRef)
	if err != nil {
		s.logger.Warn("Rate limiter unavailable, allowing request",
			zap.String("client_ref", req.ClientRef.String()), zap.Error(err))
		return nil
	}
	if !allowed {
		return shared.ErrRateLimited
	}
	return nil
}

// payoutCapability reads the payee's verification status. An unreachable
// verification service defers payout instead of blocking the sale.
func (s *AuthorizeService) payoutCapability(ctx context.Context, req AuthorizePaymentRequest) payment.PayoutCapability {
	capability, err := s.verification.PayoutCapability(ctx, req.PayeeRef)
	if err != nil {
		s.logger.Warn("Verification service unavailable, routing to escrow",
			zap.String("payee_ref", req.PayeeRef.String()), zap.Error(err))
		return payment.PayoutCapability{}
	}
	return capability
}

// recordAuthorizationFailure audits and alerts a terminal gateway outcome.
func (s *AuthorizeService) recordAuthorizationFailure(ctx context.Context, req AuthorizePaymentRequest, err error) {
	kind := shared.KindOf(err)
	if kind != shared.KindGatewayRejection {
		return
	}
	s.audit(ctx, "", "payment.authorization_rejected", err.Error())
	s.alerts.Receive(ctx, "payment.authorization_rejected", payment.AlertPriorityMedium, map[string]string{
		"client_ref": req.ClientRef.String(),
		"payee_ref":  req.PayeeRef.String(),
		"currency":   req.Currency,
		"error":      err.Error(),
	})
}

func (s *AuthorizeService) audit(ctx context.Context, paymentRef, action, detail string) {
	entry := &payment.AuditEntry{
		PaymentRef: paymentRef,
		Action:     action,
		Detail:     detail,
		Actor:      "authorize_service",
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry",
			zap.String("action", action), zap.Error(err))
	}
}
