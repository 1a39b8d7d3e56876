package payment

import (
	"time"

	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultLockValidity bounds how long a duplicate-guard lock blocks
// identical requests when it is never explicitly released.
const DefaultLockValidity = 10 * time.Minute

// LockKey identifies the request tuple protected against duplicate
// authorization.
type LockKey struct {
	ClientRef uuid.UUID
	PayeeRef  uuid.UUID
	Amount    int64
	Currency  string
}

// PaymentLock is the short-lived duplicate-guard record. It is created
// inside the guard's store transaction, bound to the payment ID on
// success, and deleted on any failure path so legitimate retries are
// never permanently blocked.
type PaymentLock struct {
	shared.BaseEntity
	ClientRef  uuid.UUID
	PayeeRef   uuid.UUID
	Amount     int64
	Currency   string
	SessionRef uuid.UUID
	PaymentRef string // bound after a successful authorization
	ValidUntil time.Time
}

// NewPaymentLock creates a lock for the given key and correlated session.
func NewPaymentLock(key LockKey, sessionRef uuid.UUID, validity time.Duration) *PaymentLock {
	if validity <= 0 {
		validity = DefaultLockValidity
	}
	return &PaymentLock{
		BaseEntity: shared.NewBaseEntity(),
		ClientRef:  key.ClientRef,
		PayeeRef:   key.PayeeRef,
		Amount:     key.Amount,
		Currency:   key.Currency,
		SessionRef: sessionRef,
		ValidUntil: time.Now().Add(validity),
	}
}

// Key returns the lock's request tuple.
func (l *PaymentLock) Key() LockKey {
	return LockKey{
		ClientRef: l.ClientRef,
		PayeeRef:  l.PayeeRef,
		Amount:    l.Amount,
		Currency:  l.Currency,
	}
}

// IsExpired reports whether the lock's validity window has passed.
func (l *PaymentLock) IsExpired(now time.Time) bool {
	return now.After(l.ValidUntil)
}

// Bind attaches the created payment ID to the lock.
func (l *PaymentLock) Bind(paymentRef string) {
	l.PaymentRef = paymentRef
	l.Touch()
}
