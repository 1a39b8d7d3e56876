package persistence

import (
	"context"
	"errors"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/consultpay/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPayoutConfigRepository implements PayoutConfigRepository using GORM
type GormPayoutConfigRepository struct {
	db *gorm.DB
}

// NewGormPayoutConfigRepository creates a new GormPayoutConfigRepository
func NewGormPayoutConfigRepository(db *gorm.DB) *GormPayoutConfigRepository {
	return &GormPayoutConfigRepository{db: db}
}

// FindOverrideByPayee finds the active payout override for a payee
func (r *GormPayoutConfigRepository) FindOverrideByPayee(ctx context.Context, payeeRef uuid.UUID) (*payment.PayoutOverride, error) {
	var model models.PayoutOverrideModel
	if err := r.db.WithContext(ctx).
		Where("payee_ref = ? AND active = ?", payeeRef, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindExternalAccount finds a configured external payout account by ref
func (r *GormPayoutConfigRepository) FindExternalAccount(ctx context.Context, ref string) (*payment.ExternalAccount, error) {
	var model models.ExternalAccountModel
	if err := r.db.WithContext(ctx).First(&model, "ref = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormPayoutConfigRepository implements PayoutConfigRepository
var _ payment.PayoutConfigRepository = (*GormPayoutConfigRepository)(nil)
