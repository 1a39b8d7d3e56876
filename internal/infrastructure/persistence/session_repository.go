package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/consultpay/backend/internal/domain/session"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/consultpay/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSessionRepository implements session.Repository using GORM
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// FindByID finds a consultation session by its ID
func (r *GormSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*session.ConsultationSession, error) {
	var model models.ConsultationSessionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindStaleNonTerminal returns sessions stuck in the given statuses whose
// last status change is older than the cutoff
func (r *GormSessionRepository) FindStaleNonTerminal(ctx context.Context, statuses []session.Status, cutoff time.Time) ([]session.ConsultationSession, error) {
	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = s.String()
	}
	var sessionModels []models.ConsultationSessionModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND status_changed_at < ?", statusStrings, cutoff).
		Order("status_changed_at ASC").
		Find(&sessionModels).Error; err != nil {
		return nil, err
	}
	sessions := make([]session.ConsultationSession, len(sessionModels))
	for i, model := range sessionModels {
		sessions[i] = *model.ToDomain()
	}
	return sessions, nil
}

// Save persists the session, including its payment sub-state
func (r *GormSessionRepository) Save(ctx context.Context, s *session.ConsultationSession) error {
	model := models.ConsultationSessionModelFromDomain(s)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormSessionRepository implements session.Repository
var _ session.Repository = (*GormSessionRepository)(nil)
