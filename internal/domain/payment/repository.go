package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentRecordRepository persists payment ledger entries.
type PaymentRecordRepository interface {
	FindByID(ctx context.Context, id string) (*PaymentRecord, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*PaymentRecord, error)

	// FindActiveByTuple returns non-terminal payments matching the
	// duplicate-guard tuple. Used as defense in depth outside the lock.
	FindActiveByTuple(ctx context.Context, key LockKey) ([]PaymentRecord, error)

	// FindAuthorizedBefore returns payments still authorized or awaiting
	// client action whose authorization is older than the cutoff.
	FindAuthorizedBefore(ctx context.Context, cutoff time.Time) ([]PaymentRecord, error)

	// FindAuthorized returns all payments currently authorized.
	FindAuthorized(ctx context.Context) ([]PaymentRecord, error)

	// FindUncapturedBySession returns authorized or action-required
	// payments correlated to the given session.
	FindUncapturedBySession(ctx context.Context, sessionRef uuid.UUID) ([]PaymentRecord, error)

	Save(ctx context.Context, p *PaymentRecord) error
}

// PendingTransferRepository persists deferred payouts.
type PendingTransferRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PendingTransfer, error)

	// FindAwaitingByPayee returns awaiting transfers for a payee,
	// oldest first. Processing order is strictly creation order.
	FindAwaitingByPayee(ctx context.Context, payeeRef uuid.UUID) ([]PendingTransfer, error)

	// FindStuckInFlight returns in-flight transfers whose processing
	// started before the cutoff, across all payees.
	FindStuckInFlight(ctx context.Context, cutoff time.Time) ([]PendingTransfer, error)

	// FindFailedRetryableByPayee returns failed transfers below the
	// attempt cap for a payee.
	FindFailedRetryableByPayee(ctx context.Context, payeeRef uuid.UUID) ([]PendingTransfer, error)

	Save(ctx context.Context, t *PendingTransfer) error
}

// PaymentLockRepository persists duplicate-guard locks. FindByKey and
// Create are called inside the guard's store transaction.
type PaymentLockRepository interface {
	FindByKey(ctx context.Context, key LockKey) (*PaymentLock, error)
	Create(ctx context.Context, lock *PaymentLock) error
	Save(ctx context.Context, lock *PaymentLock) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditEntry is an append-only record of a money-affecting decision.
type AuditEntry struct {
	ID         uuid.UUID
	PaymentRef string
	Action     string
	Detail     string
	Actor      string
	CreatedAt  time.Time
}

// AuditLogRepository appends audit entries. Append-only by contract.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
}
