package payment

import (
	"context"
	"strconv"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransferProcessor drains and recovers KYC-gated pending payouts. It is
// the only writer of PendingTransfer records. Each pass is self-idempotent
// and safe to run concurrently with itself thanks to the in-flight
// timestamp pattern and per-transfer idempotency keys.
type TransferProcessor struct {
	transferRepo payment.PendingTransferRepository
	paymentRepo  payment.PaymentRecordRepository
	gateways     payment.GatewayRegistry
	verification payment.VerificationService
	settlement   *SettlementService
	sync         *CrossEntitySync
	notifier     payment.Notifier
	auditRepo    payment.AuditLogRepository
	alerts       payment.AlertSink
	logger       *zap.Logger
}

// NewTransferProcessor creates a new TransferProcessor
func NewTransferProcessor(
	transferRepo payment.PendingTransferRepository,
	paymentRepo payment.PaymentRecordRepository,
	gateways payment.GatewayRegistry,
	verification payment.VerificationService,
	settlement *SettlementService,
	sync *CrossEntitySync,
	notifier payment.Notifier,
	auditRepo payment.AuditLogRepository,
	alerts payment.AlertSink,
	logger *zap.Logger,
) *TransferProcessor {
	return &TransferProcessor{
		transferRepo: transferRepo,
		paymentRepo:  paymentRepo,
		gateways:     gateways,
		verification: verification,
		settlement:   settlement,
		sync:         sync,
		notifier:     notifier,
		auditRepo:    auditRepo,
		alerts:       alerts,
		logger:       logger,
	}
}

// ProcessPendingTransfersForPayee reclaims the payee's stuck in-flight
// transfers, then settles the remaining awaiting ones strictly oldest
// first. Order never changes on retry.
func (p *TransferProcessor) ProcessPendingTransfersForPayee(ctx context.Context, payeeRef uuid.UUID) (TransferProcessingStats, error) {
	var stats TransferProcessingStats

	reclaimed, err := p.reclaimStuckForPayee(ctx, payeeRef)
	if err != nil {
		return stats, err
	}
	stats.Reclaimed = reclaimed

	capability, err := p.verification.PayoutCapability(ctx, payeeRef)
	if err != nil {
		return stats, shared.WrapDomainError(shared.KindGatewayTransient, "VERIFICATION_UNAVAILABLE",
			"could not read payout capability for payee "+payeeRef.String(), err)
	}
	if !capability.Verified {
		p.logger.Debug("Payee not yet verified, transfers stay pending",
			zap.String("payee_ref", payeeRef.String()))
		return stats, nil
	}

	awaiting, err := p.transferRepo.FindAwaitingByPayee(ctx, payeeRef)
	if err != nil {
		return stats, err
	}

	for i := range awaiting {
		transfer := &awaiting[i]
		switch outcome := p.settleOne(ctx, transfer, capability); outcome {
		case transferSettled:
			stats.Settled++
		case transferFailed:
			stats.Failed++
		case transferSkipped:
			stats.Skipped++
		}
	}
	return stats, nil
}

// RecoverStuckTransfersGlobal resets every transfer stuck in flight past
// the stuck age across all payees, then reprocesses payees that are now
// verified. Scheduled; failures alert and retry next run.
func (p *TransferProcessor) RecoverStuckTransfersGlobal(ctx context.Context) (TransferProcessingStats, error) {
	var stats TransferProcessingStats

	cutoff := time.Now().Add(-payment.StuckTransferAge)
	stuck, err := p.transferRepo.FindStuckInFlight(ctx, cutoff)
	if err != nil {
		return stats, err
	}

	payees := make(map[uuid.UUID]struct{})
	for i := range stuck {
		transfer := &stuck[i]
		transfer.ResetForRetry()
		if err := p.transferRepo.Save(ctx, transfer); err != nil {
			p.alertStuck(ctx, transfer, err)
			stats.Failed++
			continue
		}
		stats.Reclaimed++
		payees[transfer.PayeeRef] = struct{}{}
		p.logger.Info("Reclaimed stuck transfer",
			zap.String("transfer_id", transfer.ID.String()),
			zap.String("payee_ref", transfer.PayeeRef.String()))
	}

	for payeeRef := range payees {
		capability, err := p.verification.PayoutCapability(ctx, payeeRef)
		if err != nil || !capability.Verified {
			continue
		}
		payeeStats, err := p.ProcessPendingTransfersForPayee(ctx, payeeRef)
		if err != nil {
			p.logger.Error("Recovery reprocessing failed for payee",
				zap.String("payee_ref", payeeRef.String()), zap.Error(err))
			continue
		}
		stats.Settled += payeeStats.Settled
		stats.Failed += payeeStats.Failed
		stats.Skipped += payeeStats.Skipped
	}
	return stats, nil
}

// RetryFailedTransfersForPayee resets failed transfers below the attempt
// cap back to awaiting, then reprocesses the payee.
func (p *TransferProcessor) RetryFailedTransfersForPayee(ctx context.Context, payeeRef uuid.UUID) (TransferProcessingStats, error) {
	var stats TransferProcessingStats

	failed, err := p.transferRepo.FindFailedRetryableByPayee(ctx, payeeRef)
	if err != nil {
		return stats, err
	}
	for i := range failed {
		transfer := &failed[i]
		if !transfer.CanRetry() {
			continue
		}
		transfer.ResetForRetry()
		if err := p.transferRepo.Save(ctx, transfer); err != nil {
			p.alertStuck(ctx, transfer, err)
			continue
		}
	}

	return p.ProcessPendingTransfersForPayee(ctx, payeeRef)
}

type settleOutcome int

const (
	transferSettled settleOutcome = iota
	transferFailed
	transferSkipped
)

// settleOne moves a single awaiting transfer through in-flight to settled
// or failed. The in-flight state with its processing timestamp is
// persisted before the gateway call so a crash is recoverable.
func (p *TransferProcessor) settleOne(ctx context.Context, transfer *payment.PendingTransfer, capability payment.PayoutCapability) settleOutcome {
	record, err := p.paymentRepo.FindByID(ctx, transfer.PaymentRef)
	if err != nil {
		p.failTransfer(ctx, transfer, "payment record unavailable: "+err.Error())
		return transferFailed
	}
	if record.Status.IsTerminal() {
		// The payment was cancelled, refunded, or failed after the
		// transfer was queued; there is nothing to pay out.
		p.failTransfer(ctx, transfer, "payment is "+record.Status.String())
		return transferFailed
	}

	route, err := p.settlement.PayoutDecision(ctx, transfer.PayeeRef)
	if err != nil {
		p.failTransfer(ctx, transfer, "payout decision failed: "+err.Error())
		return transferFailed
	}

	if err := transfer.BeginProcessing(); err != nil {
		p.logger.Warn("Transfer no longer awaiting, skipping",
			zap.String("transfer_id", transfer.ID.String()), zap.Error(err))
		return transferSkipped
	}
	if err := p.transferRepo.Save(ctx, transfer); err != nil {
		p.alertStuck(ctx, transfer, err)
		return transferFailed
	}

	if route.Kind == payment.PayoutInternal {
		return p.settleInternally(ctx, transfer, record)
	}

	destination := capability.DestinationAccountID
	if route.Kind == payment.PayoutExternalAccount {
		destination, err = p.settlement.ExternalAccountID(ctx, route)
		if err != nil {
			p.failTransfer(ctx, transfer, "external account unavailable: "+err.Error())
			return transferFailed
		}
	}

	gateway, err := p.gateways.Gateway(record.GatewayFamily)
	if err != nil {
		p.failTransfer(ctx, transfer, err.Error())
		return transferFailed
	}

	result, err := gateway.Transfer(ctx, payment.TransferRequest{
		DestinationAccountID: destination,
		Amount:               transfer.PayeeShare,
		Currency:             transfer.Currency,
		IdempotencyKey:       TransferIdempotencyKey(transfer.ID),
		PaymentRef:           transfer.PaymentRef,
	})
	if err != nil {
		p.failTransfer(ctx, transfer, err.Error())
		return transferFailed
	}

	return p.finishSettlement(ctx, transfer, record, result.TransferID)
}

// settleInternally completes a transfer whose funds stay on the platform.
// No external movement happens; the retention is audit-logged.
func (p *TransferProcessor) settleInternally(ctx context.Context, transfer *payment.PendingTransfer, record *payment.PaymentRecord) settleOutcome {
	p.audit(ctx, transfer.PaymentRef, "payout.retained_internally",
		"transfer="+transfer.ID.String()+" payee="+transfer.PayeeRef.String())
	return p.finishSettlement(ctx, transfer, record, "")
}

// finishSettlement marks the transfer settled, syncs the payment and its
// session, and notifies the payee.
func (p *TransferProcessor) finishSettlement(ctx context.Context, transfer *payment.PendingTransfer, record *payment.PaymentRecord, gatewayTransferID string) settleOutcome {
	if err := transfer.MarkSettled(gatewayTransferID); err != nil {
		p.alertStuck(ctx, transfer, err)
		return transferFailed
	}
	if err := p.transferRepo.Save(ctx, transfer); err != nil {
		p.alertStuck(ctx, transfer, err)
		return transferFailed
	}

	sessionRef := record.SessionRef
	_, err := p.sync.Apply(ctx, record.ID, &sessionRef,
		func(rec *payment.PaymentRecord) error {
			if gatewayTransferID != "" {
				rec.TransferID = gatewayTransferID
			}
			return nil
		},
		map[string]string{
			"payout_status":      payment.TransferStatusSettled.String(),
			"payout_transfer_id": gatewayTransferID,
		})
	if err != nil {
		// The payout landed; the sync gap is alerted inside Apply and
		// reconciled manually.
		p.logger.Error("Cross-entity sync failed after settled payout",
			zap.String("transfer_id", transfer.ID.String()), zap.Error(err))
	}

	p.notifier.NotifyPayeeSettled(ctx, transfer.PayeeRef, transfer.PaymentRef, transfer.PayeeShare, transfer.Currency)
	p.audit(ctx, transfer.PaymentRef, "payout.settled",
		"transfer="+transfer.ID.String()+" gateway_transfer="+gatewayTransferID)
	p.logger.Info("Pending transfer settled",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("payment_ref", transfer.PaymentRef),
		zap.Int64("payee_share", transfer.PayeeShare))
	return transferSettled
}

// reclaimStuckForPayee resets this payee's transfers stuck in flight.
func (p *TransferProcessor) reclaimStuckForPayee(ctx context.Context, payeeRef uuid.UUID) (int, error) {
	cutoff := time.Now().Add(-payment.StuckTransferAge)
	stuck, err := p.transferRepo.FindStuckInFlight(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	reclaimed := 0
	for i := range stuck {
		transfer := &stuck[i]
		if transfer.PayeeRef != payeeRef {
			continue
		}
		transfer.ResetForRetry()
		if err := p.transferRepo.Save(ctx, transfer); err != nil {
			p.alertStuck(ctx, transfer, err)
			continue
		}
		reclaimed++
	}
	return reclaimed, nil
}

// failTransfer marks the transfer failed and raises an alert.
func (p *TransferProcessor) failTransfer(ctx context.Context, transfer *payment.PendingTransfer, reason string) {
	transfer.MarkFailed(reason)
	if err := p.transferRepo.Save(ctx, transfer); err != nil {
		p.alertStuck(ctx, transfer, err)
		return
	}
	p.logger.Warn("Pending transfer failed",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("payment_ref", transfer.PaymentRef),
		zap.Int("retry_count", transfer.RetryCount),
		zap.String("reason", reason))
	p.alerts.Receive(ctx, "payout.transfer_failed", payment.AlertPriorityHigh, map[string]string{
		"transfer_id": transfer.ID.String(),
		"payment_ref": transfer.PaymentRef,
		"payee_ref":   transfer.PayeeRef.String(),
		"retry_count": strconv.Itoa(transfer.RetryCount),
		"reason":      reason,
	})
}

// alertStuck reports a recovery attempt that itself failed. Retried on
// the next scheduled run.
func (p *TransferProcessor) alertStuck(ctx context.Context, transfer *payment.PendingTransfer, err error) {
	wrapped := shared.WrapDomainError(shared.KindStuckState, "TRANSFER_RECOVERY_FAILED",
		"could not persist transfer "+transfer.ID.String(), err)
	p.logger.Error("Transfer recovery attempt failed",
		zap.String("transfer_id", transfer.ID.String()), zap.Error(wrapped))
	p.alerts.Receive(ctx, "payout.recovery_failed", payment.AlertPriorityCritical, map[string]string{
		"transfer_id": transfer.ID.String(),
		"payment_ref": transfer.PaymentRef,
		"error":       wrapped.Error(),
	})
}

func (p *TransferProcessor) audit(ctx context.Context, paymentRef, action, detail string) {
	entry := &payment.AuditEntry{
		PaymentRef: paymentRef,
		Action:     action,
		Detail:     detail,
		Actor:      "transfer_processor",
	}
	if err := p.auditRepo.Append(ctx, entry); err != nil {
		p.logger.Error("Failed to append audit entry",
			zap.String("action", action), zap.Error(err))
	}
}
