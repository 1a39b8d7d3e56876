package persistence

import (
	"context"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements AuditLogRepository using GORM.
// Entries are insert-only; nothing in this repository updates or deletes.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Append inserts an audit entry
func (r *GormAuditLogRepository) Append(ctx context.Context, entry *payment.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	model := &models.AuditEntryModel{
		ID:         entry.ID,
		PaymentRef: entry.PaymentRef,
		Action:     entry.Action,
		Detail:     entry.Detail,
		Actor:      entry.Actor,
		CreatedAt:  entry.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// Ensure GormAuditLogRepository implements AuditLogRepository
var _ payment.AuditLogRepository = (*GormAuditLogRepository)(nil)
