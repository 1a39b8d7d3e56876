package payment

import (
	"time"

	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SchemaVersion tags the consolidated PaymentRecord shape. Version 2
// carries a single minor-unit amount field; version 1 rows (legacy
// main-unit duplicates) are adapted at the persistence boundary.
const SchemaVersion = 2

// Status represents the status of a payment record.
type Status string

const (
	StatusAuthorized     Status = "AUTHORIZED"      // funds held, not collected
	StatusActionRequired Status = "ACTION_REQUIRED" // pending client-side step-up challenge
	StatusCaptured       Status = "CAPTURED"
	StatusRefunded       Status = "REFUNDED"
	StatusCancelled      Status = "CANCELLED"
	StatusFailed         Status = "FAILED"
)

// IsValid checks if the status is a valid payment status.
func (s Status) IsValid() bool {
	switch s {
	case StatusAuthorized, StatusActionRequired, StatusCaptured,
		StatusRefunded, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the payment can no longer change status.
// Refunded is reachable from captured, so captured is not terminal.
func (s Status) IsTerminal() bool {
	return s == StatusRefunded || s == StatusCancelled || s == StatusFailed
}

// CanTransitionTo reports whether the state machine permits moving from
// s to next. Payments never transition backward.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusAuthorized:
		return next == StatusCaptured || next == StatusCancelled || next == StatusFailed
	case StatusActionRequired:
		return next == StatusCaptured || next == StatusCancelled || next == StatusFailed
	case StatusCaptured:
		return next == StatusRefunded
	default:
		return false
	}
}

// RoutingMode decides how captured funds are split.
type RoutingMode string

const (
	// RoutingEscrowPlatform holds captured funds on the platform account
	// pending a deferred payout to the payee.
	RoutingEscrowPlatform RoutingMode = "ESCROW_PLATFORM"
	// RoutingDirectSplit lets the gateway auto-split captured funds
	// between payee and platform at capture time.
	RoutingDirectSplit RoutingMode = "DIRECT_SPLIT"
)

// IsValid checks if the routing mode is valid.
func (m RoutingMode) IsValid() bool {
	return m == RoutingEscrowPlatform || m == RoutingDirectSplit
}

// String returns the string representation of RoutingMode.
func (m RoutingMode) String() string {
	return string(m)
}

// ServiceKind enumerates the billable consultation products.
type ServiceKind string

const (
	ServiceKindVideoConsultation ServiceKind = "VIDEO_CONSULTATION"
	ServiceKindVoiceConsultation ServiceKind = "VOICE_CONSULTATION"
	ServiceKindChatConsultation  ServiceKind = "CHAT_CONSULTATION"
)

// IsValid checks if the service kind is one of the enumerated set.
func (k ServiceKind) IsValid() bool {
	switch k {
	case ServiceKindVideoConsultation, ServiceKindVoiceConsultation, ServiceKindChatConsultation:
		return true
	}
	return false
}

// PaymentRecord is the ledger entry for one consultation payment. Its ID
// is the gateway authorization ID, so retries that collide on the
// idempotency key resolve to the same record.
type PaymentRecord struct {
	ID            string // gateway authorization id
	SchemaVer     int
	ClientRef     uuid.UUID
	PayeeRef      uuid.UUID
	SessionRef    uuid.UUID
	ServiceKind   ServiceKind
	Amount        int64 // minor units
	Commission    int64 // minor units
	PayeeShare    int64 // minor units
	Currency      string
	RoutingMode   RoutingMode
	Status        Status
	GatewayFamily GatewayFamily

	// PayeeVerifiedAtAuth snapshots the payee's payout capability at
	// authorization time.
	PayeeVerifiedAtAuth bool

	IdempotencyKey string
	TransferID     string // set at capture for DirectSplit
	RefundID       string
	CapturedAmount int64
	RefundedAmount int64
	FailureReason  string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	CapturedAt *time.Time
	ResolvedAt *time.Time // cancel/refund/fail timestamp
}

// NewPaymentRecord creates an authorized payment record from a completed
// gateway authorization.
func NewPaymentRecord(
	authorizationID string,
	clientRef, payeeRef, sessionRef uuid.UUID,
	kind ServiceKind,
	amount, commission, payeeShare int64,
	currency string,
	mode RoutingMode,
	family GatewayFamily,
	payeeVerified bool,
	idempotencyKey string,
) (*PaymentRecord, error) {
	if authorizationID == "" {
		return nil, shared.NewDomainError(shared.KindValidation, "MISSING_AUTHORIZATION_ID", "authorization id is required")
	}
	if !shared.AmountsCoherent(amount, commission, payeeShare) {
		return nil, shared.NewDomainError(shared.KindValidation, "AMOUNT_INCOHERENT",
			"commission plus payee share does not match amount within tolerance")
	}
	if !mode.IsValid() {
		return nil, shared.NewDomainError(shared.KindValidation, "INVALID_ROUTING_MODE", "invalid routing mode")
	}
	now := time.Now()
	return &PaymentRecord{
		ID:                  authorizationID,
		SchemaVer:           SchemaVersion,
		ClientRef:           clientRef,
		PayeeRef:            payeeRef,
		SessionRef:          sessionRef,
		ServiceKind:         kind,
		Amount:              amount,
		Commission:          commission,
		PayeeShare:          payeeShare,
		Currency:            currency,
		RoutingMode:         mode,
		Status:              StatusAuthorized,
		GatewayFamily:       family,
		PayeeVerifiedAtAuth: payeeVerified,
		IdempotencyKey:      idempotencyKey,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// transition moves the record to next, enforcing the state machine.
func (p *PaymentRecord) transition(next Status) error {
	if !p.Status.CanTransitionTo(next) {
		return shared.NewDomainError(shared.KindInvalidState, "ILLEGAL_STATUS_TRANSITION",
			"payment "+p.ID+" cannot move from "+p.Status.String()+" to "+next.String())
	}
	p.Status = next
	p.UpdatedAt = time.Now()
	return nil
}

// MarkActionRequired records a pending client-side step-up challenge.
func (p *PaymentRecord) MarkActionRequired() error {
	if p.Status == StatusActionRequired {
		return nil
	}
	if p.Status != StatusAuthorized {
		return shared.NewDomainError(shared.KindInvalidState, "ILLEGAL_STATUS_TRANSITION",
			"payment "+p.ID+" cannot require action from "+p.Status.String())
	}
	p.Status = StatusActionRequired
	p.UpdatedAt = time.Now()
	return nil
}

// MarkCaptured records a successful capture, including the transfer the
// gateway auto-created for DirectSplit payments.
func (p *PaymentRecord) MarkCaptured(capturedAmount int64, transferID string) error {
	if err := p.transition(StatusCaptured); err != nil {
		return err
	}
	now := time.Now()
	p.CapturedAmount = capturedAmount
	p.TransferID = transferID
	p.CapturedAt = &now
	return nil
}

// MarkRefunded records a refund of the captured payment.
func (p *PaymentRecord) MarkRefunded(refundID string, refundedAmount int64) error {
	if err := p.transition(StatusRefunded); err != nil {
		return err
	}
	now := time.Now()
	p.RefundID = refundID
	p.RefundedAmount = refundedAmount
	p.ResolvedAt = &now
	return nil
}

// MarkCancelled voids the authorization before capture.
func (p *PaymentRecord) MarkCancelled(reason string) error {
	if err := p.transition(StatusCancelled); err != nil {
		return err
	}
	now := time.Now()
	p.FailureReason = reason
	p.ResolvedAt = &now
	return nil
}

// MarkFailed records a terminal failure.
func (p *PaymentRecord) MarkFailed(reason string) error {
	if err := p.transition(StatusFailed); err != nil {
		return err
	}
	now := time.Now()
	p.FailureReason = reason
	p.ResolvedAt = &now
	return nil
}
