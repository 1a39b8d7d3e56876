package payment

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/session"
	"github.com/consultpay/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ReconciliationConfig holds the thresholds that drive reconciliation.
type ReconciliationConfig struct {
	// MinBillableDuration is the minimum completed-session duration that
	// justifies an auto-capture.
	MinBillableDuration time.Duration
	// RefundAge is how old an uncaptured authorization may grow before it
	// is auto-cancelled.
	RefundAge time.Duration
	// OrphanAge is how long a session may sit in a non-terminal state
	// before the orphan sweep considers it abandoned.
	OrphanAge time.Duration
}

// ReconciliationService reconciles local payment state against the
// gateway's authoritative view: completed consultations get captured,
// abandoned authorizations get voided, orphaned sessions get swept. Every
// gateway decision inside the settlement engine re-reads authoritative
// status, so a run that races a live client operation stays correct.
type ReconciliationService struct {
	paymentRepo payment.PaymentRecordRepository
	sessionRepo session.Repository
	settlement  *SettlementService
	probe       session.LivenessProbe
	alerts      payment.AlertSink
	config      ReconciliationConfig
	logger      *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	paymentRepo payment.PaymentRecordRepository,
	sessionRepo session.Repository,
	settlement *SettlementService,
	probe session.LivenessProbe,
	alerts payment.AlertSink,
	config ReconciliationConfig,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		paymentRepo: paymentRepo,
		sessionRepo: sessionRepo,
		settlement:  settlement,
		probe:       probe,
		alerts:      alerts,
		config:      config,
		logger:      logger,
	}
}

// Run executes one reconciliation pass and raises a single aggregated
// alert when any corrective action occurred.
func (s *ReconciliationService) Run(ctx context.Context) (ReconciliationStats, error) {
	var stats ReconciliationStats

	s.autoCapture(ctx, &stats)
	s.autoCancel(ctx, &stats)
	s.sweepOrphanedSessions(ctx, &stats)

	if stats.Corrected() {
		s.alerts.Receive(ctx, "reconciliation.corrections", payment.AlertPriorityMedium, map[string]string{
			"auto_captured":     strconv.Itoa(stats.AutoCaptured),
			"auto_cancelled":    strconv.Itoa(stats.AutoCancelled),
			"orphans_cancelled": strconv.Itoa(stats.OrphansCancelled),
			"errors":            strconv.Itoa(stats.Errors),
		})
	}

	s.logger.Info("Reconciliation run finished",
		zap.Int("auto_captured", stats.AutoCaptured),
		zap.Int("auto_cancelled", stats.AutoCancelled),
		zap.Int("orphans_cancelled", stats.OrphansCancelled),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// autoCapture captures authorized payments whose session completed with a
// billable duration.
func (s *ReconciliationService) autoCapture(ctx context.Context, stats *ReconciliationStats) {
	records, err := s.paymentRepo.FindAuthorized(ctx)
	if err != nil {
		s.logger.Error("Auto-capture scan failed", zap.Error(err))
		stats.Errors++
		return
	}

	minBillable := int64(s.config.MinBillableDuration.Seconds())
	for i := range records {
		record := &records[i]
		sess, err := s.sessionRepo.FindByID(ctx, record.SessionRef)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				stats.Errors++
			}
			continue
		}
		if sess.Status != session.StatusCompleted || sess.DurationSeconds < minBillable {
			continue
		}

		if _, err := s.settlement.Capture(ctx, CapturePaymentRequest{
			PaymentRef: record.ID,
			SessionRef: record.SessionRef,
		}); err != nil {
			s.logger.Warn("Auto-capture failed",
				zap.String("payment_ref", record.ID), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.AutoCaptured++
	}
}

// autoCancel voids uncaptured authorizations older than the refund age
// with no billable completed session backing them.
func (s *ReconciliationService) autoCancel(ctx context.Context, stats *ReconciliationStats) {
	cutoff := time.Now().Add(-s.config.RefundAge)
	records, err := s.paymentRepo.FindAuthorizedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Auto-cancel scan failed", zap.Error(err))
		stats.Errors++
		return
	}

	minBillable := int64(s.config.MinBillableDuration.Seconds())
	for i := range records {
		record := &records[i]

		sess, err := s.sessionRepo.FindByID(ctx, record.SessionRef)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			stats.Errors++
			continue
		}
		if sess != nil && sess.Status == session.StatusCompleted && sess.DurationSeconds >= minBillable {
			// Billable, the auto-capture path owns it.
			continue
		}

		reason := "authorization expired without a billable session"
		if sess == nil {
			reason = "correlated session missing"
		}
		if _, err := s.settlement.Cancel(ctx, CancelPaymentRequest{
			PaymentRef: record.ID,
			Reason:     reason,
		}); err != nil {
			s.logger.Warn("Auto-cancel failed",
				zap.String("payment_ref", record.ID), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.AutoCancelled++
	}
}

// sweepOrphanedSessions cancels uncaptured payments of sessions stuck in
// non-terminal states past the orphan age. Sessions with a live
// externally-verified connection are always skipped, never touched.
func (s *ReconciliationService) sweepOrphanedSessions(ctx context.Context, stats *ReconciliationStats) {
	cutoff := time.Now().Add(-s.config.OrphanAge)
	stale, err := s.sessionRepo.FindStaleNonTerminal(ctx, []session.Status{
		session.StatusPending,
		session.StatusConnecting,
		session.StatusActive,
	}, cutoff)
	if err != nil {
		s.logger.Error("Orphan sweep scan failed", zap.Error(err))
		stats.Errors++
		return
	}

	for i := range stale {
		sess := &stale[i]

		if sess.Status.IsLive() {
			live, err := s.probe.HasLiveConnection(ctx, sess.ID)
			if err != nil {
				// Unknown liveness never cancels anything.
				s.logger.Warn("Liveness probe failed, skipping session",
					zap.String("session_ref", sess.ID.String()), zap.Error(err))
				stats.Errors++
				continue
			}
			if live {
				continue
			}
		}

		payments, err := s.paymentRepo.FindUncapturedBySession(ctx, sess.ID)
		if err != nil {
			stats.Errors++
			continue
		}
		for j := range payments {
			if _, err := s.settlement.Cancel(ctx, CancelPaymentRequest{
				PaymentRef: payments[j].ID,
				Reason:     "session orphaned in " + sess.Status.String(),
			}); err != nil {
				s.logger.Warn("Orphan cancel failed",
					zap.String("payment_ref", payments[j].ID),
					zap.String("session_ref", sess.ID.String()),
					zap.Error(err))
				stats.Errors++
				continue
			}
			stats.OrphansCancelled++
		}
	}
}
