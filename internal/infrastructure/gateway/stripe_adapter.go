package gateway

import (
	"context"
	"errors"
	"maps"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/refund"
	"github.com/stripe/stripe-go/v81/transfer"
	"go.uber.org/zap"
)

// StripeCardGateway implements the card-rail gateway on Stripe payment
// intents in manual-capture mode.
type StripeCardGateway struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeCardGateway creates a new Stripe card-rail adapter
func NewStripeCardGateway(config *StripeConfig, logger *zap.Logger) (*StripeCardGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.InitStripeClient()
	return &StripeCardGateway{config: config, logger: logger}, nil
}

// Family returns the card rail family
func (g *StripeCardGateway) Family() payment.GatewayFamily {
	return payment.GatewayFamilyCard
}

// Authorize creates a manual-capture payment intent. Stripe replays the
// original intent for a repeated idempotency key, so a retried request
// resolves to the same authorization ID.
func (g *StripeCardGateway) Authorize(ctx context.Context, req payment.AuthorizeRequest) (*payment.AuthorizeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Description:   stripe.String(req.Description),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.Metadata = map[string]string{"client_ref": req.ClientRef}
	maps.Copy(params.Metadata, req.Metadata)

	if req.Split != nil {
		params.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.Split.DestinationAccountID),
		}
		params.ApplicationFeeAmount = stripe.Int64(req.Split.FeeAmount)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, g.classify("authorize", err)
	}

	g.logger.Debug("Stripe authorization created",
		zap.String("payment_intent", intent.ID),
		zap.String("status", string(intent.Status)))

	return &payment.AuthorizeResult{
		AuthorizationID: intent.ID,
		Status:          mapIntentStatus(intent.Status),
	}, nil
}

// Capture collects the held funds
func (g *StripeCardGateway) Capture(ctx context.Context, authorizationID, idempotencyKey string) (*payment.CaptureResult, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	params.AddExpand("latest_charge")

	intent, err := paymentintent.Capture(authorizationID, params)
	if err != nil {
		return nil, g.classify("capture", err)
	}

	result := &payment.CaptureResult{
		CapturedAmount: intent.AmountReceived,
	}
	if intent.LatestCharge != nil && intent.LatestCharge.Transfer != nil {
		result.TransferID = intent.LatestCharge.Transfer.ID
	}
	return result, nil
}

// Cancel voids an uncaptured payment intent
func (g *StripeCardGateway) Cancel(ctx context.Context, authorizationID, idempotencyKey string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	if _, err := paymentintent.Cancel(authorizationID, params); err != nil {
		return g.classify("cancel", err)
	}
	return nil
}

// Refund reverses a captured payment intent
func (g *StripeCardGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.AuthorizationID),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	if req.Amount > 0 {
		params.Amount = stripe.Int64(req.Amount)
	}
	if req.ReverseTransfer {
		params.ReverseTransfer = stripe.Bool(true)
	}
	if req.RefundCommission {
		params.RefundApplicationFee = stripe.Bool(true)
	}
	if req.Reason != "" {
		params.Metadata = map[string]string{"reason": req.Reason}
	}

	ref, err := refund.New(params)
	if err != nil {
		return nil, g.classify("refund", err)
	}
	return &payment.RefundResult{
		RefundID:       ref.ID,
		RefundedAmount: ref.Amount,
	}, nil
}

// Transfer moves escrow-held platform funds to a payout destination
func (g *StripeCardGateway) Transfer(ctx context.Context, req payment.TransferRequest) (*payment.TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		Destination:   stripe.String(req.DestinationAccountID),
		TransferGroup: stripe.String(req.PaymentRef),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	tr, err := transfer.New(params)
	if err != nil {
		return nil, g.classify("transfer", err)
	}
	return &payment.TransferResult{TransferID: tr.ID}, nil
}

// RetrieveStatus returns the authoritative intent status
func (g *StripeCardGateway) RetrieveStatus(ctx context.Context, authorizationID string) (payment.AuthorizationStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := paymentintent.Get(authorizationID, params)
	if err != nil {
		return "", g.classify("retrieve_status", err)
	}
	return mapIntentStatus(intent.Status), nil
}

// classify maps Stripe errors onto the shared taxonomy. Card declines and
// invalid requests are terminal rejections; everything else, including
// network failures and 5xx responses, is transient and counts toward the
// circuit breaker.
func (g *StripeCardGateway) classify(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.Type == stripe.ErrorTypeCard:
			return payment.NewGatewayRejection(op, string(stripeErr.Code), err)
		case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
			return payment.NewGatewayRejection(op, string(stripeErr.Code), err)
		case stripeErr.HTTPStatusCode >= 500:
			return payment.NewGatewayTransientError(op, err)
		case stripeErr.Code == stripe.ErrorCodeLockTimeout,
			stripeErr.Code == stripe.ErrorCodeIdempotencyKeyInUse:
			return payment.NewGatewayTransientError(op, err)
		default:
			return payment.NewGatewayRejection(op, string(stripeErr.Code), err)
		}
	}
	return payment.NewGatewayTransientError(op, err)
}

// mapIntentStatus converts a Stripe intent status onto the gateway port.
func mapIntentStatus(status stripe.PaymentIntentStatus) payment.AuthorizationStatus {
	switch status {
	case stripe.PaymentIntentStatusRequiresCapture:
		return payment.AuthStatusRequiresCapture
	case stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusProcessing:
		return payment.AuthStatusRequiresAction
	case stripe.PaymentIntentStatusSucceeded:
		return payment.AuthStatusCaptured
	case stripe.PaymentIntentStatusCanceled:
		return payment.AuthStatusCancelled
	default:
		return payment.AuthStatusFailed
	}
}

// Ensure StripeCardGateway implements Gateway
var _ payment.Gateway = (*StripeCardGateway)(nil)
