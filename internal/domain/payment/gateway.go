package payment

import (
	"context"

	"github.com/consultpay/backend/internal/domain/shared"
)

// GatewayFamily identifies which payment-rail family handles a payment.
type GatewayFamily string

const (
	// GatewayFamilyCard is the manual-capture card rail with split and
	// transfer support.
	GatewayFamilyCard GatewayFamily = "CARD"
	// GatewayFamilyWallet is the authorize/capture/void wallet rail.
	GatewayFamilyWallet GatewayFamily = "WALLET"
)

// IsValid returns true if the gateway family is valid.
func (f GatewayFamily) IsValid() bool {
	return f == GatewayFamilyCard || f == GatewayFamilyWallet
}

// String returns the string representation of GatewayFamily.
func (f GatewayFamily) String() string {
	return string(f)
}

// AuthorizationStatus is the gateway's authoritative view of an
// authorization. Settlement decisions re-read this status immediately
// before acting; the local cache is never trusted for capture, cancel,
// or refund.
type AuthorizationStatus string

const (
	AuthStatusRequiresCapture AuthorizationStatus = "REQUIRES_CAPTURE"
	AuthStatusRequiresAction  AuthorizationStatus = "REQUIRES_ACTION"
	AuthStatusCaptured        AuthorizationStatus = "CAPTURED"
	AuthStatusCancelled       AuthorizationStatus = "CANCELLED"
	AuthStatusRefunded        AuthorizationStatus = "REFUNDED"
	AuthStatusFailed          AuthorizationStatus = "FAILED"
)

// IsCapturable reports whether the gateway would accept a capture.
func (s AuthorizationStatus) IsCapturable() bool {
	return s == AuthStatusRequiresCapture
}

// IsCancellable reports whether the gateway would accept a void.
func (s AuthorizationStatus) IsCancellable() bool {
	return s == AuthStatusRequiresCapture || s == AuthStatusRequiresAction
}

// String returns the string representation of AuthorizationStatus.
func (s AuthorizationStatus) String() string {
	return string(s)
}

// SplitDescriptor pre-declares the destination and platform fee for a
// direct-split authorization. The gateway auto-splits at capture time.
type SplitDescriptor struct {
	DestinationAccountID string
	// FeeAmount is the platform commission in minor units.
	FeeAmount int64
}

// AuthorizeRequest asks a gateway to hold funds in manual-capture mode.
type AuthorizeRequest struct {
	Amount         int64 // minor units
	Currency       string
	ClientRef      string
	Description    string
	IdempotencyKey string
	// Split is set only for direct-split routing.
	Split *SplitDescriptor
	Metadata map[string]string
}

// AuthorizeResult is the outcome of a successful authorization.
type AuthorizeResult struct {
	AuthorizationID string
	Status          AuthorizationStatus
	// ExistingAuthorization is true when the gateway reported an
	// idempotency collision and the pre-existing authorization was
	// looked up instead of creating a new one.
	ExistingAuthorization bool
}

// CaptureResult is the outcome of a capture.
type CaptureResult struct {
	CapturedAmount int64
	// TransferID is set when the gateway auto-created a split transfer.
	TransferID string
}

// RefundRequest reverses a captured payment, optionally partially.
type RefundRequest struct {
	AuthorizationID string
	// Amount of 0 means a full refund.
	Amount         int64
	Reason         string
	IdempotencyKey string
	// ReverseTransfer also pulls back the auto-created split transfer.
	ReverseTransfer bool
	// RefundCommission also returns the platform fee portion.
	RefundCommission bool
}

// RefundResult is the outcome of a refund.
type RefundResult struct {
	RefundID       string
	RefundedAmount int64
}

// TransferRequest moves escrow-held funds to a payout destination.
type TransferRequest struct {
	DestinationAccountID string
	Amount               int64
	Currency             string
	IdempotencyKey       string
	PaymentRef           string
}

// TransferResult is the outcome of a transfer.
type TransferResult struct {
	TransferID string
}

// Gateway is the port every payment rail implements. All calls are made
// through the resilience wrapper; implementations classify failures as
// transient or rejections via the shared error taxonomy.
type Gateway interface {
	// Family returns the rail family of this gateway.
	Family() GatewayFamily

	// Authorize creates a manual-capture authorization: funds held, not
	// collected. A retried request with the same idempotency key must
	// resolve to the same authorization.
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)

	// Capture collects the held funds.
	Capture(ctx context.Context, authorizationID, idempotencyKey string) (*CaptureResult, error)

	// Cancel voids an uncaptured authorization.
	Cancel(ctx context.Context, authorizationID, idempotencyKey string) error

	// Refund reverses a captured payment.
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)

	// Transfer moves escrow-held funds to a payout destination.
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)

	// RetrieveStatus returns the gateway's authoritative status for the
	// authorization.
	RetrieveStatus(ctx context.Context, authorizationID string) (AuthorizationStatus, error)
}

// GatewayRegistry selects the gateway adapter for a rail family.
type GatewayRegistry interface {
	// Gateway returns the adapter for the given family.
	Gateway(family GatewayFamily) (Gateway, error)
	// Default returns the adapter new authorizations are routed to.
	Default() Gateway
}

// Gateway error constructors. Adapters use these so callers and the
// circuit breaker can classify failures uniformly.

// NewGatewayTransientError wraps a timeout/5xx-class gateway failure.
func NewGatewayTransientError(op string, cause error) error {
	return shared.WrapDomainError(shared.KindGatewayTransient, "GATEWAY_TRANSIENT",
		"gateway "+op+" failed transiently", cause)
}

// NewGatewayRejection wraps a terminal gateway decline.
func NewGatewayRejection(op, reason string, cause error) error {
	return shared.WrapDomainError(shared.KindGatewayRejection, "GATEWAY_REJECTED",
		"gateway rejected "+op+": "+reason, cause)
}
