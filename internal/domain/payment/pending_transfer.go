package payment

import (
	"time"

	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MaxTransferAttempts caps how often a failed pending transfer may be
// retried before requiring manual intervention.
const MaxTransferAttempts = 3

// StuckTransferAge is how long a transfer may sit in flight before a
// recovery pass treats it as abandoned by a crashed process.
const StuckTransferAge = time.Hour

// TransferStatus represents the status of a deferred payee payout.
type TransferStatus string

const (
	TransferStatusAwaitingVerification TransferStatus = "AWAITING_VERIFICATION"
	TransferStatusInFlight             TransferStatus = "IN_FLIGHT"
	TransferStatusSettled              TransferStatus = "SETTLED"
	TransferStatusFailed               TransferStatus = "FAILED"
)

// IsValid checks if the transfer status is valid.
func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferStatusAwaitingVerification, TransferStatusInFlight,
		TransferStatusSettled, TransferStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of TransferStatus.
func (s TransferStatus) String() string {
	return string(s)
}

// PendingTransfer is a deferred payee payout awaiting identity
// verification. It is created at authorization time for escrow-routed
// payments and only ever mutated by the transfer processor.
type PendingTransfer struct {
	shared.BaseEntity
	PaymentRef string
	PayeeRef   uuid.UUID
	PayeeShare int64 // minor units
	Currency   string
	Status     TransferStatus

	// ProcessingStartedAt is set only while in flight and drives
	// stuck-transfer detection after a crash.
	ProcessingStartedAt *time.Time

	GatewayTransferID string
	RetryCount        int
	ErrorMessage      string
}

// NewPendingTransfer creates a transfer awaiting payee verification.
func NewPendingTransfer(paymentRef string, payeeRef uuid.UUID, payeeShare int64, currency string) (*PendingTransfer, error) {
	if paymentRef == "" {
		return nil, shared.NewDomainError(shared.KindValidation, "MISSING_PAYMENT_REF", "payment reference is required")
	}
	if payeeShare <= 0 {
		return nil, shared.NewDomainError(shared.KindValidation, "INVALID_PAYEE_SHARE", "payee share must be positive")
	}
	return &PendingTransfer{
		BaseEntity: shared.NewBaseEntity(),
		PaymentRef: paymentRef,
		PayeeRef:   payeeRef,
		PayeeShare: payeeShare,
		Currency:   currency,
		Status:     TransferStatusAwaitingVerification,
	}, nil
}

// BeginProcessing marks the transfer in flight and stamps the
// processing-start time used for crash recovery.
func (t *PendingTransfer) BeginProcessing() error {
	if t.Status != TransferStatusAwaitingVerification {
		return shared.NewDomainError(shared.KindInvalidState, "TRANSFER_NOT_PENDING",
			"transfer "+t.ID.String()+" is "+t.Status.String()+", not awaiting verification")
	}
	now := time.Now()
	t.Status = TransferStatusInFlight
	t.ProcessingStartedAt = &now
	t.Touch()
	return nil
}

// MarkSettled records the gateway transfer that settled the payout.
// Settled is logically terminal.
func (t *PendingTransfer) MarkSettled(gatewayTransferID string) error {
	if t.Status != TransferStatusInFlight {
		return shared.NewDomainError(shared.KindInvalidState, "TRANSFER_NOT_IN_FLIGHT",
			"transfer "+t.ID.String()+" is "+t.Status.String()+", not in flight")
	}
	t.Status = TransferStatusSettled
	t.GatewayTransferID = gatewayTransferID
	t.ProcessingStartedAt = nil
	t.Touch()
	return nil
}

// MarkFailed records a failed settlement attempt.
func (t *PendingTransfer) MarkFailed(errMsg string) {
	t.Status = TransferStatusFailed
	t.RetryCount++
	t.ErrorMessage = errMsg
	t.ProcessingStartedAt = nil
	t.Touch()
}

// IsStuck reports whether the transfer has been in flight longer than
// the stuck-transfer age as of now.
func (t *PendingTransfer) IsStuck(now time.Time) bool {
	return t.Status == TransferStatusInFlight &&
		t.ProcessingStartedAt != nil &&
		now.Sub(*t.ProcessingStartedAt) > StuckTransferAge
}

// ResetForRetry returns the transfer to awaiting verification so a later
// pass can pick it up again. Used both for stuck in-flight recovery and
// for retrying failures below the attempt cap.
func (t *PendingTransfer) ResetForRetry() {
	t.Status = TransferStatusAwaitingVerification
	t.ProcessingStartedAt = nil
	t.Touch()
}

// CanRetry reports whether a failed transfer is below the attempt cap.
func (t *PendingTransfer) CanRetry() bool {
	return t.Status == TransferStatusFailed && t.RetryCount < MaxTransferAttempts
}
