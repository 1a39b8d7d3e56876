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

// GormPaymentLockRepository implements PaymentLockRepository using GORM
type GormPaymentLockRepository struct {
	db *gorm.DB
}

// NewGormPaymentLockRepository creates a new GormPaymentLockRepository
func NewGormPaymentLockRepository(db *gorm.DB) *GormPaymentLockRepository {
	return &GormPaymentLockRepository{db: db}
}

// FindByKey finds a lock by its request tuple
func (r *GormPaymentLockRepository) FindByKey(ctx context.Context, key payment.LockKey) (*payment.PaymentLock, error) {
	var model models.PaymentLockModel
	if err := r.db.WithContext(ctx).
		Where("client_ref = ? AND payee_ref = ? AND amount_minor = ? AND currency = ?",
			key.ClientRef, key.PayeeRef, key.Amount, key.Currency).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new lock. The unique index on the request tuple makes
// concurrent inserts for the same tuple fail, which the guard maps to a
// duplicate-request error.
func (r *GormPaymentLockRepository) Create(ctx context.Context, lock *payment.PaymentLock) error {
	model := models.PaymentLockModelFromDomain(lock)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrDuplicateRequest
		}
		return err
	}
	return nil
}

// Save persists lock mutations such as binding the payment reference
func (r *GormPaymentLockRepository) Save(ctx context.Context, lock *payment.PaymentLock) error {
	model := models.PaymentLockModelFromDomain(lock)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a lock, releasing the tuple for future requests
func (r *GormPaymentLockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.PaymentLockModel{}, "id = ?", id).Error
}

// Ensure GormPaymentLockRepository implements PaymentLockRepository
var _ payment.PaymentLockRepository = (*GormPaymentLockRepository)(nil)
