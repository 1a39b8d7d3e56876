package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/consultpay/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRecordRepository implements PaymentRecordRepository using GORM
type GormPaymentRecordRepository struct {
	db *gorm.DB
}

// NewGormPaymentRecordRepository creates a new GormPaymentRecordRepository
func NewGormPaymentRecordRepository(db *gorm.DB) *GormPaymentRecordRepository {
	return &GormPaymentRecordRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormPaymentRecordRepository) WithTx(tx *gorm.DB) *GormPaymentRecordRepository {
	return &GormPaymentRecordRepository{db: tx}
}

// FindByID finds a payment record by its gateway authorization ID
func (r *GormPaymentRecordRepository) FindByID(ctx context.Context, id string) (*payment.PaymentRecord, error) {
	var model models.PaymentRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds the payment record created under the given key
func (r *GormPaymentRecordRepository) FindByIdempotencyKey(ctx context.Context, key string) (*payment.PaymentRecord, error) {
	var model models.PaymentRecordModel
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByTuple returns non-terminal payments matching the
// duplicate-guard tuple. Captured counts: a refund is still reachable, so
// a captured payment for the tuple must stay visible to the scan.
func (r *GormPaymentRecordRepository) FindActiveByTuple(ctx context.Context, key payment.LockKey) ([]payment.PaymentRecord, error) {
	var recordModels []models.PaymentRecordModel
	if err := r.db.WithContext(ctx).
		Where("client_ref = ? AND payee_ref = ? AND amount_minor = ? AND currency = ?",
			key.ClientRef, key.PayeeRef, key.Amount, key.Currency).
		Where("status IN ?", []string{
			payment.StatusAuthorized.String(),
			payment.StatusActionRequired.String(),
			payment.StatusCaptured.String(),
		}).
		Order("created_at ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(recordModels), nil
}

// FindAuthorizedBefore returns payments still awaiting capture whose
// authorization is older than the cutoff
func (r *GormPaymentRecordRepository) FindAuthorizedBefore(ctx context.Context, cutoff time.Time) ([]payment.PaymentRecord, error) {
	var recordModels []models.PaymentRecordModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			payment.StatusAuthorized.String(),
			payment.StatusActionRequired.String(),
		}).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(recordModels), nil
}

// FindAuthorized returns all payments currently authorized
func (r *GormPaymentRecordRepository) FindAuthorized(ctx context.Context) ([]payment.PaymentRecord, error) {
	var recordModels []models.PaymentRecordModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", payment.StatusAuthorized.String()).
		Order("created_at ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(recordModels), nil
}

// FindUncapturedBySession returns authorized or action-required payments
// correlated to the given session
func (r *GormPaymentRecordRepository) FindUncapturedBySession(ctx context.Context, sessionRef uuid.UUID) ([]payment.PaymentRecord, error) {
	var recordModels []models.PaymentRecordModel
	if err := r.db.WithContext(ctx).
		Where("session_ref = ?", sessionRef).
		Where("status IN ?", []string{
			payment.StatusAuthorized.String(),
			payment.StatusActionRequired.String(),
		}).
		Order("created_at ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(recordModels), nil
}

// Save persists the payment record
func (r *GormPaymentRecordRepository) Save(ctx context.Context, p *payment.PaymentRecord) error {
	model := models.PaymentRecordModelFromDomain(p)
	return r.db.WithContext(ctx).Save(model).Error
}

func toDomainPayments(recordModels []models.PaymentRecordModel) []payment.PaymentRecord {
	records := make([]payment.PaymentRecord, len(recordModels))
	for i, model := range recordModels {
		records[i] = *model.ToDomain()
	}
	return records
}

// Ensure GormPaymentRecordRepository implements PaymentRecordRepository
var _ payment.PaymentRecordRepository = (*GormPaymentRecordRepository)(nil)
