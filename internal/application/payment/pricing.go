package payment

import (
	"context"
	"errors"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PricingService recomputes the expected consultation price server-side
// so a tampered client-supplied amount is rejected before any gateway
// call. Promotional windows override the base price; at most one
// discount code stacks on top.
type PricingService struct {
	catalog PriceCatalog
	logger  *zap.Logger
}

// NewPricingService creates a new PricingService
func NewPricingService(catalog PriceCatalog, logger *zap.Logger) *PricingService {
	return &PricingService{catalog: catalog, logger: logger}
}

// ExpectedPrice returns the authoritative price in minor units for the
// service kind, applying any open promotional window and the discount
// code when one is supplied.
func (s *PricingService) ExpectedPrice(ctx context.Context, kind payment.ServiceKind, currency, discountCode string) (int64, error) {
	price, err := s.catalog.BasePrice(ctx, kind, currency)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	promo, err := s.catalog.ActivePromotion(ctx, kind, currency, now)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return 0, err
	}
	if promo != nil && promo.Active(now) {
		price = promo.PriceMinor
	}

	if discountCode != "" {
		discount, err := s.catalog.Discount(ctx, discountCode)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return 0, shared.NewDomainError(shared.KindValidation, "UNKNOWN_DISCOUNT_CODE",
					"discount code "+discountCode+" does not exist")
			}
			return 0, err
		}
		if !discount.Active || discount.Percent <= 0 || discount.Percent > 100 {
			return 0, shared.NewDomainError(shared.KindValidation, "INVALID_DISCOUNT_CODE",
				"discount code "+discountCode+" is not usable")
		}
		price = applyDiscount(price, discount.Percent)
	}

	return price, nil
}

// VerifyAmount rejects a client-supplied amount that deviates from the
// expected price beyond the unified tolerance.
func (s *PricingService) VerifyAmount(ctx context.Context, kind payment.ServiceKind, currency, discountCode string, claimed int64) error {
	expected, err := s.ExpectedPrice(ctx, kind, currency, discountCode)
	if err != nil {
		return err
	}
	diff := claimed - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > shared.CoherenceToleranceMinorUnits {
		s.logger.Warn("Client-supplied amount deviates from authoritative price",
			zap.String("service_kind", string(kind)),
			zap.String("currency", currency),
			zap.Int64("claimed", claimed),
			zap.Int64("expected", expected))
		return shared.NewDomainError(shared.KindBusinessRule, "PRICE_MISMATCH",
			"supplied amount does not match the current price")
	}
	return nil
}

// applyDiscount reduces the price by the given percentage, rounding half
// up in minor units.
func applyDiscount(price, percent int64) int64 {
	discounted := decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(100 - percent)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return discounted.IntPart()
}
