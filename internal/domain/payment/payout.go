package payment

import (
	"context"
	"time"

	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PayoutRouteKind discriminates the payout routing variant.
type PayoutRouteKind string

const (
	// PayoutInternal keeps the payee share on the platform. No external
	// movement happens; the retention is audit-logged.
	PayoutInternal PayoutRouteKind = "INTERNAL"
	// PayoutExternalAccount routes the payee share to a configured
	// external account instead of the payee's own.
	PayoutExternalAccount PayoutRouteKind = "EXTERNAL_ACCOUNT"
	// PayoutStandard routes the payee share to the payee's own account.
	PayoutStandard PayoutRouteKind = "STANDARD"
)

// PayoutRoute is the resolved payout destination for a payee. It is
// decided once per settlement and passed down explicitly instead of
// re-deriving it from optional flags at every call site.
type PayoutRoute struct {
	Kind PayoutRouteKind
	// AccountRef is set only for PayoutExternalAccount.
	AccountRef string
}

// Internal returns the internal-retention route.
func InternalRoute() PayoutRoute { return PayoutRoute{Kind: PayoutInternal} }

// ExternalRoute returns a route to the given configured account.
func ExternalRoute(accountRef string) PayoutRoute {
	return PayoutRoute{Kind: PayoutExternalAccount, AccountRef: accountRef}
}

// StandardRoute returns the payee's-own-account route.
func StandardRoute() PayoutRoute { return PayoutRoute{Kind: PayoutStandard} }

// PayoutOverride is a payee-level routing override record.
type PayoutOverride struct {
	shared.BaseEntity
	PayeeRef uuid.UUID
	// Retain keeps funds on the platform regardless of account config.
	Retain bool
	// ExternalAccountRef names a configured external account to route to.
	ExternalAccountRef string
	Active             bool
}

// ExternalAccount is a globally configured payout destination.
type ExternalAccount struct {
	Ref              string
	GatewayAccountID string
	Description      string
	Active           bool
	DeactivatedAt    *time.Time
	CreatedAt        time.Time
}

// PayoutConfigRepository resolves payout overrides and external accounts.
type PayoutConfigRepository interface {
	FindOverrideByPayee(ctx context.Context, payeeRef uuid.UUID) (*PayoutOverride, error)
	FindExternalAccount(ctx context.Context, ref string) (*ExternalAccount, error)
}
