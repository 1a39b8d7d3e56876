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

// GormPendingTransferRepository implements PendingTransferRepository using GORM
type GormPendingTransferRepository struct {
	db *gorm.DB
}

// NewGormPendingTransferRepository creates a new GormPendingTransferRepository
func NewGormPendingTransferRepository(db *gorm.DB) *GormPendingTransferRepository {
	return &GormPendingTransferRepository{db: db}
}

// FindByID finds a pending transfer by its ID
func (r *GormPendingTransferRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.PendingTransfer, error) {
	var model models.PendingTransferModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAwaitingByPayee returns awaiting transfers for a payee, oldest first
func (r *GormPendingTransferRepository) FindAwaitingByPayee(ctx context.Context, payeeRef uuid.UUID) ([]payment.PendingTransfer, error) {
	var transferModels []models.PendingTransferModel
	if err := r.db.WithContext(ctx).
		Where("payee_ref = ? AND status = ?", payeeRef, payment.TransferStatusAwaitingVerification.String()).
		Order("created_at ASC").
		Find(&transferModels).Error; err != nil {
		return nil, err
	}
	return toDomainTransfers(transferModels), nil
}

// FindStuckInFlight returns in-flight transfers whose processing started
// before the cutoff, across all payees
func (r *GormPendingTransferRepository) FindStuckInFlight(ctx context.Context, cutoff time.Time) ([]payment.PendingTransfer, error) {
	var transferModels []models.PendingTransferModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND processing_started_at < ?", payment.TransferStatusInFlight.String(), cutoff).
		Order("processing_started_at ASC").
		Find(&transferModels).Error; err != nil {
		return nil, err
	}
	return toDomainTransfers(transferModels), nil
}

// FindFailedRetryableByPayee returns failed transfers below the attempt cap
func (r *GormPendingTransferRepository) FindFailedRetryableByPayee(ctx context.Context, payeeRef uuid.UUID) ([]payment.PendingTransfer, error) {
	var transferModels []models.PendingTransferModel
	if err := r.db.WithContext(ctx).
		Where("payee_ref = ? AND status = ? AND retry_count < ?",
			payeeRef, payment.TransferStatusFailed.String(), payment.MaxTransferAttempts).
		Order("created_at ASC").
		Find(&transferModels).Error; err != nil {
		return nil, err
	}
	return toDomainTransfers(transferModels), nil
}

// Save persists the pending transfer
func (r *GormPendingTransferRepository) Save(ctx context.Context, t *payment.PendingTransfer) error {
	model := models.PendingTransferModelFromDomain(t)
	return r.db.WithContext(ctx).Save(model).Error
}

func toDomainTransfers(transferModels []models.PendingTransferModel) []payment.PendingTransfer {
	transfers := make([]payment.PendingTransfer, len(transferModels))
	for i, model := range transferModels {
		transfers[i] = *model.ToDomain()
	}
	return transfers
}

// Ensure GormPendingTransferRepository implements PendingTransferRepository
var _ payment.PendingTransferRepository = (*GormPendingTransferRepository)(nil)
