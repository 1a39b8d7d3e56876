package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/consultpay/backend/internal/domain/session"
	"github.com/google/uuid"
)

// StringMap stores a string map as a JSON column. Postgres uses jsonb,
// sqlite falls back to text.
type StringMap map[string]string

// Value implements driver.Valuer
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = StringMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringMap: %T", value)
	}
	if len(data) == 0 {
		*m = StringMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// GormDataType returns the common gorm data type
func (StringMap) GormDataType() string {
	return "jsonb"
}

// ConsultationSessionModel is the persistence model for consultation
// sessions. The session row is owned by the call establishment system;
// this service reads status/duration and writes the payment sub-state.
type ConsultationSessionModel struct {
	BaseModel
	ClientRef       uuid.UUID `gorm:"type:uuid;not null;index"`
	PayeeRef        uuid.UUID `gorm:"type:uuid;not null;index"`
	Status          string    `gorm:"size:32;not null;index"`
	DurationSeconds int64     `gorm:"not null;default:0"`
	PaymentState    StringMap `gorm:"type:jsonb"`
	StatusChangedAt time.Time `gorm:"not null;index"`
}

// TableName returns the table name for ConsultationSessionModel
func (ConsultationSessionModel) TableName() string {
	return "consultation_sessions"
}

// ToDomain converts the model to a domain ConsultationSession
func (m *ConsultationSessionModel) ToDomain() *session.ConsultationSession {
	return &session.ConsultationSession{
		BaseEntity:      m.BaseModel.ToDomain(),
		ClientRef:       m.ClientRef,
		PayeeRef:        m.PayeeRef,
		Status:          session.Status(m.Status),
		DurationSeconds: m.DurationSeconds,
		PaymentState:    map[string]string(m.PaymentState),
		StatusChangedAt: m.StatusChangedAt,
	}
}

// ConsultationSessionModelFromDomain converts a domain ConsultationSession to its model
func ConsultationSessionModelFromDomain(s *session.ConsultationSession) *ConsultationSessionModel {
	m := &ConsultationSessionModel{
		ClientRef:       s.ClientRef,
		PayeeRef:        s.PayeeRef,
		Status:          string(s.Status),
		DurationSeconds: s.DurationSeconds,
		PaymentState:    StringMap(s.PaymentState),
		StatusChangedAt: s.StatusChangedAt,
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m
}
