package payment

import (
	"context"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/session"
)

// TransactionalRepositories provides repositories scoped to one store
// transaction. Reads must precede writes within the transaction.
type TransactionalRepositories interface {
	Payments() payment.PaymentRecordRepository
	Locks() payment.PaymentLockRepository
	Sessions() session.Repository
}

// TransactionScope runs a function atomically against the store. Used by
// the duplicate guard and by cross-entity sync, the only two places that
// need multi-record atomicity.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// Promotion is an active promotional override window for a service kind.
type Promotion struct {
	ServiceKind payment.ServiceKind
	Currency    string
	// PriceMinor replaces the base price while the window is open.
	PriceMinor int64
	StartsAt   time.Time
	EndsAt     time.Time
}

// Active reports whether the window is open as of now.
func (p Promotion) Active(now time.Time) bool {
	return !now.Before(p.StartsAt) && now.Before(p.EndsAt)
}

// DiscountCode is a stackable discount. At most one code applies per
// authorization.
type DiscountCode struct {
	Code string
	// Percent off in whole percentage points, 1..100.
	Percent int64
	Active  bool
}

// PriceCatalog is the authoritative pricing collaborator consulted when
// recomputing the expected price server-side.
type PriceCatalog interface {
	// BasePrice returns the consultation price in minor units.
	BasePrice(ctx context.Context, kind payment.ServiceKind, currency string) (int64, error)
	// ActivePromotion returns the open promotional window for the kind,
	// or shared.ErrNotFound when none is open.
	ActivePromotion(ctx context.Context, kind payment.ServiceKind, currency string, now time.Time) (*Promotion, error)
	// Discount resolves a discount code, or shared.ErrNotFound.
	Discount(ctx context.Context, code string) (*DiscountCode, error)
}
