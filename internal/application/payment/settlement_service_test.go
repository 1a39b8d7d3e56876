package payment

import (
	"context"
	"testing"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("captures and syncs the session projection", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)
		f.gateway.captureResult = &payment.CaptureResult{CapturedAmount: 10000, TransferID: "tr_split"}

		resp, err := f.settlement.Capture(ctx, CapturePaymentRequest{
			PaymentRef: record.ID,
			SessionRef: record.SessionRef,
		})
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, resp.Status)
		assert.Equal(t, int64(10000), resp.CapturedAmount)
		assert.Equal(t, "tr_split", resp.TransferID)

		sess, err := f.sessions.FindByID(ctx, record.SessionRef)
		require.NoError(t, err)
		assert.Equal(t, "CAPTURED", sess.PaymentState["payment.status"])
		assert.Equal(t, "10000", sess.PaymentState["payment.captured_amount"])

		assert.Contains(t, f.audit.actions(), "payment.captured")
	})

	t.Run("retried capture of a captured payment is a no-op", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)
		f.gateway.captureResult = &payment.CaptureResult{CapturedAmount: 10000}

		req := CapturePaymentRequest{PaymentRef: record.ID, SessionRef: record.SessionRef}
		first, err := f.settlement.Capture(ctx, req)
		require.NoError(t, err)

		second, err := f.settlement.Capture(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.CapturedAmount, second.CapturedAmount)
		assert.Equal(t, 1, f.gateway.captureCalls, "gateway called once")
	})

	t.Run("cancelled payment is not capturable", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)
		stored := f.payments.records[record.ID]
		require.NoError(t, stored.MarkCancelled("abandoned"))
		f.payments.records[record.ID] = stored

		_, err := f.settlement.Capture(ctx, CapturePaymentRequest{PaymentRef: record.ID, SessionRef: record.SessionRef})
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindInvalidState))
	})

	t.Run("gateway view wins over the local record", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)
		f.gateway.statuses[record.ID] = payment.AuthStatusCancelled

		_, err := f.settlement.Capture(ctx, CapturePaymentRequest{PaymentRef: record.ID, SessionRef: record.SessionRef})
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindBusinessRule))

		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "GATEWAY_NOT_CAPTURABLE", de.Code)
		assert.Zero(t, f.gateway.captureCalls)
	})

	t.Run("capture lost before the local write heals on retry", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)
		f.gateway.statuses[record.ID] = payment.AuthStatusCaptured
		f.gateway.captureResult = &payment.CaptureResult{CapturedAmount: 10000, TransferID: "tr_replayed"}

		resp, err := f.settlement.Capture(ctx, CapturePaymentRequest{PaymentRef: record.ID, SessionRef: record.SessionRef})
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, resp.Status)
		assert.Equal(t, int64(10000), resp.CapturedAmount)
		assert.Equal(t, "tr_replayed", resp.TransferID)
		assert.Equal(t, 1, f.gateway.captureCalls, "deterministic key replays the original capture")

		stored := f.payments.records[record.ID]
		assert.Equal(t, payment.StatusCaptured, stored.Status)
		assert.Equal(t, int64(10000), stored.CapturedAmount)
	})

	t.Run("escrow capture with unverified payee proceeds and alerts", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingEscrowPlatform)
		f.gateway.captureResult = &payment.CaptureResult{CapturedAmount: 10000}

		resp, err := f.settlement.Capture(ctx, CapturePaymentRequest{PaymentRef: record.ID, SessionRef: record.SessionRef})
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, resp.Status)
		assert.Contains(t, f.alerts.typesSeen(), "payment.capture_unverified_payee")
	})

	t.Run("gateway rejection audits and alerts", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)
		f.gateway.captureErr = payment.NewGatewayRejection("capture", "funds unavailable", nil)

		_, err := f.settlement.Capture(ctx, CapturePaymentRequest{PaymentRef: record.ID, SessionRef: record.SessionRef})
		require.Error(t, err)
		assert.Contains(t, f.alerts.typesSeen(), "payment.capture_failed")
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	captured := func(t *testing.T, f *fixture, mode payment.RoutingMode) *payment.PaymentRecord {
		t.Helper()
		record := f.seedPayment(mode)
		stored := f.payments.records[record.ID]
		transferID := ""
		if mode == payment.RoutingDirectSplit {
			transferID = "tr_split"
		}
		require.NoError(t, stored.MarkCaptured(10000, transferID))
		f.payments.records[record.ID] = stored
		return &stored
	}

	t.Run("full refund reverses transfer and commission for direct split", func(t *testing.T) {
		f := newFixture()
		record := captured(t, f, payment.RoutingDirectSplit)
		f.gateway.refundResult = &payment.RefundResult{RefundID: "re_1", RefundedAmount: 10000}

		resp, err := f.settlement.Refund(ctx, RefundPaymentRequest{PaymentRef: record.ID, Reason: "dispute"})
		require.NoError(t, err)
		assert.Equal(t, payment.StatusRefunded, resp.Status)
		assert.Equal(t, int64(10000), resp.RefundedAmount)

		require.Len(t, f.gateway.refundCalls, 1)
		call := f.gateway.refundCalls[0]
		assert.Equal(t, int64(10000), call.Amount, "zero request amount means full refund")
		assert.True(t, call.ReverseTransfer)
		assert.True(t, call.RefundCommission)

		require.Len(t, f.notifier.refunded, 1)
		assert.Equal(t, record.ClientRef, f.notifier.refunded[0].who)
	})

	t.Run("partial refund keeps the commission", func(t *testing.T) {
		f := newFixture()
		record := captured(t, f, payment.RoutingEscrowPlatform)
		f.gateway.refundResult = &payment.RefundResult{RefundID: "re_2", RefundedAmount: 4000}

		_, err := f.settlement.Refund(ctx, RefundPaymentRequest{PaymentRef: record.ID, Reason: "partial", Amount: 4000})
		require.NoError(t, err)

		call := f.gateway.refundCalls[0]
		assert.Equal(t, int64(4000), call.Amount)
		assert.False(t, call.ReverseTransfer, "escrow capture created no split transfer")
		assert.False(t, call.RefundCommission)
	})

	t.Run("retried refund is a no-op", func(t *testing.T) {
		f := newFixture()
		record := captured(t, f, payment.RoutingDirectSplit)
		f.gateway.refundResult = &payment.RefundResult{RefundID: "re_3", RefundedAmount: 10000}

		req := RefundPaymentRequest{PaymentRef: record.ID, Reason: "dispute"}
		_, err := f.settlement.Refund(ctx, req)
		require.NoError(t, err)
		_, err = f.settlement.Refund(ctx, req)
		require.NoError(t, err)
		assert.Len(t, f.gateway.refundCalls, 1)
	})

	t.Run("uncaptured payment is not refundable", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)

		_, err := f.settlement.Refund(ctx, RefundPaymentRequest{PaymentRef: record.ID, Reason: "early"})
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindInvalidState))
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("voids an uncaptured authorization", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)

		resp, err := f.settlement.Cancel(ctx, CancelPaymentRequest{PaymentRef: record.ID, Reason: "client bailed"})
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCancelled, resp.Status)
		assert.Equal(t, 1, f.gateway.cancelCalls)

		sess, err := f.sessions.FindByID(ctx, record.SessionRef)
		require.NoError(t, err)
		assert.Equal(t, "client bailed", sess.PaymentState["payment.cancel_reason"])
	})

	t.Run("gateway-captured payment cannot be cancelled", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)
		f.gateway.statuses[record.ID] = payment.AuthStatusCaptured

		_, err := f.settlement.Cancel(ctx, CancelPaymentRequest{PaymentRef: record.ID, Reason: "late"})
		require.Error(t, err)

		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "ALREADY_CAPTURED", de.Code)
		assert.Zero(t, f.gateway.cancelCalls)
	})

	t.Run("retried cancel is a no-op", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)

		req := CancelPaymentRequest{PaymentRef: record.ID, Reason: "dup"}
		_, err := f.settlement.Cancel(ctx, req)
		require.NoError(t, err)
		_, err = f.settlement.Cancel(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 1, f.gateway.cancelCalls)
	})
}

func TestPayoutDecision(t *testing.T) {
	ctx := context.Background()

	t.Run("no override routes standard", func(t *testing.T) {
		f := newFixture()
		route, err := f.settlement.PayoutDecision(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutStandard, route.Kind)
	})

	t.Run("retain override routes internal", func(t *testing.T) {
		f := newFixture()
		payeeRef := uuid.New()
		f.payoutConfig.overrides[payeeRef] = payment.PayoutOverride{
			BaseEntity: shared.NewBaseEntity(), PayeeRef: payeeRef, Retain: true, Active: true,
		}

		route, err := f.settlement.PayoutDecision(ctx, payeeRef)
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutInternal, route.Kind)
		assert.Contains(t, f.audit.actions(), "payout.retained")
	})

	t.Run("override with active account routes external", func(t *testing.T) {
		f := newFixture()
		payeeRef := uuid.New()
		f.payoutConfig.overrides[payeeRef] = payment.PayoutOverride{
			BaseEntity: shared.NewBaseEntity(), PayeeRef: payeeRef,
			ExternalAccountRef: "treasury", Active: true,
		}
		f.payoutConfig.accounts["treasury"] = payment.ExternalAccount{
			Ref: "treasury", GatewayAccountID: "acct_treasury", Active: true,
		}

		route, err := f.settlement.PayoutDecision(ctx, payeeRef)
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutExternalAccount, route.Kind)
		assert.Equal(t, "treasury", route.AccountRef)

		accountID, err := f.settlement.ExternalAccountID(ctx, route)
		require.NoError(t, err)
		assert.Equal(t, "acct_treasury", accountID)
	})

	t.Run("missing account fails safe to internal", func(t *testing.T) {
		f := newFixture()
		payeeRef := uuid.New()
		f.payoutConfig.overrides[payeeRef] = payment.PayoutOverride{
			BaseEntity: shared.NewBaseEntity(), PayeeRef: payeeRef,
			ExternalAccountRef: "ghost", Active: true,
		}

		route, err := f.settlement.PayoutDecision(ctx, payeeRef)
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutInternal, route.Kind)
	})

	t.Run("inactive account fails safe to internal", func(t *testing.T) {
		f := newFixture()
		payeeRef := uuid.New()
		f.payoutConfig.overrides[payeeRef] = payment.PayoutOverride{
			BaseEntity: shared.NewBaseEntity(), PayeeRef: payeeRef,
			ExternalAccountRef: "dormant", Active: true,
		}
		f.payoutConfig.accounts["dormant"] = payment.ExternalAccount{
			Ref: "dormant", GatewayAccountID: "acct_dormant", Active: false,
		}

		route, err := f.settlement.PayoutDecision(ctx, payeeRef)
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutInternal, route.Kind)
	})

	t.Run("override without retain or account routes standard", func(t *testing.T) {
		f := newFixture()
		payeeRef := uuid.New()
		f.payoutConfig.overrides[payeeRef] = payment.PayoutOverride{
			BaseEntity: shared.NewBaseEntity(), PayeeRef: payeeRef, Active: true,
		}

		route, err := f.settlement.PayoutDecision(ctx, payeeRef)
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutStandard, route.Kind)
	})
}
