package persistence

import (
	"context"
	"errors"
	"time"

	apppayment "github.com/consultpay/backend/internal/application/payment"
	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/consultpay/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPriceCatalog implements PriceCatalog using GORM
type GormPriceCatalog struct {
	db *gorm.DB
}

// NewGormPriceCatalog creates a new GormPriceCatalog
func NewGormPriceCatalog(db *gorm.DB) *GormPriceCatalog {
	return &GormPriceCatalog{db: db}
}

// BasePrice returns the consultation base price in minor units
func (r *GormPriceCatalog) BasePrice(ctx context.Context, kind payment.ServiceKind, currency string) (int64, error) {
	var model models.ServicePriceModel
	if err := r.db.WithContext(ctx).
		Where("service_kind = ? AND currency = ?", string(kind), currency).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, shared.NewDomainError(shared.KindValidation, "NO_PRICE_CONFIGURED",
				"no price configured for "+string(kind)+" in "+currency)
		}
		return 0, err
	}
	return model.PriceMinor, nil
}

// ActivePromotion returns the promotional window open as of now
func (r *GormPriceCatalog) ActivePromotion(ctx context.Context, kind payment.ServiceKind, currency string, now time.Time) (*apppayment.Promotion, error) {
	var model models.PromotionModel
	if err := r.db.WithContext(ctx).
		Where("service_kind = ? AND currency = ?", string(kind), currency).
		Where("starts_at <= ? AND ends_at > ?", now, now).
		Order("starts_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &apppayment.Promotion{
		ServiceKind: payment.ServiceKind(model.ServiceKind),
		Currency:    model.Currency,
		PriceMinor:  model.PriceMinor,
		StartsAt:    model.StartsAt,
		EndsAt:      model.EndsAt,
	}, nil
}

// Discount resolves a discount code
func (r *GormPriceCatalog) Discount(ctx context.Context, code string) (*apppayment.DiscountCode, error) {
	var model models.DiscountCodeModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &apppayment.DiscountCode{
		Code:    model.Code,
		Percent: model.Percent,
		Active:  model.Active,
	}, nil
}

// Ensure GormPriceCatalog implements PriceCatalog
var _ apppayment.PriceCatalog = (*GormPriceCatalog)(nil)
