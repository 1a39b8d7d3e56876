package models

import (
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRecordModel is the persistence model for payment ledger entries.
// Schema version 2 stores amounts in a single minor-unit column set;
// version 1 rows carried main-unit duplicates, adapted in ToDomain so
// legacy reads never leak past this boundary.
type PaymentRecordModel struct {
	ID            string    `gorm:"primary_key;size:128"`
	SchemaVersion int       `gorm:"not null;default:2"`
	ClientRef     uuid.UUID `gorm:"type:uuid;not null;index:idx_payments_tuple"`
	PayeeRef      uuid.UUID `gorm:"type:uuid;not null;index:idx_payments_tuple"`
	SessionRef    uuid.UUID `gorm:"type:uuid;not null;index"`
	ServiceKind   string    `gorm:"size:32;not null"`

	AmountMinor     int64  `gorm:"not null;index:idx_payments_tuple"`
	CommissionMinor int64  `gorm:"not null"`
	PayeeShareMinor int64  `gorm:"not null"`
	Currency        string `gorm:"size:3;not null;index:idx_payments_tuple"`

	// Legacy main-unit duplicates from schema version 1.
	LegacyAmount     *float64
	LegacyCommission *float64
	LegacyPayeeShare *float64

	RoutingMode   string `gorm:"size:32;not null"`
	Status        string `gorm:"size:32;not null;index"`
	GatewayFamily string `gorm:"size:16;not null"`

	PayeeVerifiedAtAuth bool   `gorm:"not null"`
	IdempotencyKey      string `gorm:"size:128;not null;uniqueIndex"`
	TransferID          string `gorm:"size:128"`
	RefundID            string `gorm:"size:128"`
	CapturedAmount      int64
	RefundedAmount      int64
	FailureReason       string `gorm:"size:512"`

	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
	CapturedAt *time.Time
	ResolvedAt *time.Time
}

// TableName returns the table name for PaymentRecordModel
func (PaymentRecordModel) TableName() string {
	return "payments"
}

// ToDomain converts the model to a domain PaymentRecord, adapting
// legacy main-unit rows to minor units.
func (m *PaymentRecordModel) ToDomain() *payment.PaymentRecord {
	amount, commission, payeeShare := m.AmountMinor, m.CommissionMinor, m.PayeeShareMinor
	if m.SchemaVersion < payment.SchemaVersion {
		amount = legacyToMinor(m.LegacyAmount, amount, m.Currency)
		commission = legacyToMinor(m.LegacyCommission, commission, m.Currency)
		payeeShare = legacyToMinor(m.LegacyPayeeShare, payeeShare, m.Currency)
	}
	return &payment.PaymentRecord{
		ID:                  m.ID,
		SchemaVer:           payment.SchemaVersion,
		ClientRef:           m.ClientRef,
		PayeeRef:            m.PayeeRef,
		SessionRef:          m.SessionRef,
		ServiceKind:         payment.ServiceKind(m.ServiceKind),
		Amount:              amount,
		Commission:          commission,
		PayeeShare:          payeeShare,
		Currency:            m.Currency,
		RoutingMode:         payment.RoutingMode(m.RoutingMode),
		Status:              payment.Status(m.Status),
		GatewayFamily:       payment.GatewayFamily(m.GatewayFamily),
		PayeeVerifiedAtAuth: m.PayeeVerifiedAtAuth,
		IdempotencyKey:      m.IdempotencyKey,
		TransferID:          m.TransferID,
		RefundID:            m.RefundID,
		CapturedAmount:      m.CapturedAmount,
		RefundedAmount:      m.RefundedAmount,
		FailureReason:       m.FailureReason,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
		CapturedAt:          m.CapturedAt,
		ResolvedAt:          m.ResolvedAt,
	}
}

// legacyToMinor converts a v1 main-unit value when present.
func legacyToMinor(legacy *float64, fallback int64, currency string) int64 {
	if legacy == nil {
		return fallback
	}
	minor, err := shared.ToMinorUnits(decimal.NewFromFloat(*legacy).Round(shared.CurrencyExponent(currency)), currency)
	if err != nil {
		return fallback
	}
	return minor
}

// PaymentRecordModelFromDomain converts a domain PaymentRecord to its model
func PaymentRecordModelFromDomain(p *payment.PaymentRecord) *PaymentRecordModel {
	return &PaymentRecordModel{
		ID:                  p.ID,
		SchemaVersion:       p.SchemaVer,
		ClientRef:           p.ClientRef,
		PayeeRef:            p.PayeeRef,
		SessionRef:          p.SessionRef,
		ServiceKind:         string(p.ServiceKind),
		AmountMinor:         p.Amount,
		CommissionMinor:     p.Commission,
		PayeeShareMinor:     p.PayeeShare,
		Currency:            p.Currency,
		RoutingMode:         string(p.RoutingMode),
		Status:              string(p.Status),
		GatewayFamily:       string(p.GatewayFamily),
		PayeeVerifiedAtAuth: p.PayeeVerifiedAtAuth,
		IdempotencyKey:      p.IdempotencyKey,
		TransferID:          p.TransferID,
		RefundID:            p.RefundID,
		CapturedAmount:      p.CapturedAmount,
		RefundedAmount:      p.RefundedAmount,
		FailureReason:       p.FailureReason,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		CapturedAt:          p.CapturedAt,
		ResolvedAt:          p.ResolvedAt,
	}
}

// PendingTransferModel is the persistence model for deferred payouts.
type PendingTransferModel struct {
	BaseModel
	PaymentRef          string    `gorm:"size:128;not null;index"`
	PayeeRef            uuid.UUID `gorm:"type:uuid;not null;index"`
	PayeeShareMinor     int64     `gorm:"not null"`
	Currency            string    `gorm:"size:3;not null"`
	Status              string    `gorm:"size:32;not null;index"`
	ProcessingStartedAt *time.Time
	GatewayTransferID   string `gorm:"size:128"`
	RetryCount          int    `gorm:"not null;default:0"`
	ErrorMessage        string `gorm:"size:512"`
}

// TableName returns the table name for PendingTransferModel
func (PendingTransferModel) TableName() string {
	return "pending_transfers"
}

// ToDomain converts the model to a domain PendingTransfer
func (m *PendingTransferModel) ToDomain() *payment.PendingTransfer {
	return &payment.PendingTransfer{
		BaseEntity:          m.BaseModel.ToDomain(),
		PaymentRef:          m.PaymentRef,
		PayeeRef:            m.PayeeRef,
		PayeeShare:          m.PayeeShareMinor,
		Currency:            m.Currency,
		Status:              payment.TransferStatus(m.Status),
		ProcessingStartedAt: m.ProcessingStartedAt,
		GatewayTransferID:   m.GatewayTransferID,
		RetryCount:          m.RetryCount,
		ErrorMessage:        m.ErrorMessage,
	}
}

// PendingTransferModelFromDomain converts a domain PendingTransfer to its model
func PendingTransferModelFromDomain(t *payment.PendingTransfer) *PendingTransferModel {
	m := &PendingTransferModel{
		PaymentRef:          t.PaymentRef,
		PayeeRef:            t.PayeeRef,
		PayeeShareMinor:     t.PayeeShare,
		Currency:            t.Currency,
		Status:              string(t.Status),
		ProcessingStartedAt: t.ProcessingStartedAt,
		GatewayTransferID:   t.GatewayTransferID,
		RetryCount:          t.RetryCount,
		ErrorMessage:        t.ErrorMessage,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// PaymentLockModel is the persistence model for duplicate-guard locks.
// The tuple has a unique index so concurrent guard transactions cannot
// both insert a lock for the same request.
type PaymentLockModel struct {
	BaseModel
	ClientRef   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_payment_locks_key"`
	PayeeRef    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_payment_locks_key"`
	AmountMinor int64     `gorm:"not null;uniqueIndex:idx_payment_locks_key"`
	Currency    string    `gorm:"size:3;not null;uniqueIndex:idx_payment_locks_key"`
	SessionRef  uuid.UUID `gorm:"type:uuid;not null"`
	PaymentRef  string    `gorm:"size:128"`
	ValidUntil  time.Time `gorm:"not null;index"`
}

// TableName returns the table name for PaymentLockModel
func (PaymentLockModel) TableName() string {
	return "payment_locks"
}

// ToDomain converts the model to a domain PaymentLock
func (m *PaymentLockModel) ToDomain() *payment.PaymentLock {
	return &payment.PaymentLock{
		BaseEntity: m.BaseModel.ToDomain(),
		ClientRef:  m.ClientRef,
		PayeeRef:   m.PayeeRef,
		Amount:     m.AmountMinor,
		Currency:   m.Currency,
		SessionRef: m.SessionRef,
		PaymentRef: m.PaymentRef,
		ValidUntil: m.ValidUntil,
	}
}

// PaymentLockModelFromDomain converts a domain PaymentLock to its model
func PaymentLockModelFromDomain(l *payment.PaymentLock) *PaymentLockModel {
	m := &PaymentLockModel{
		ClientRef:   l.ClientRef,
		PayeeRef:    l.PayeeRef,
		AmountMinor: l.Amount,
		Currency:    l.Currency,
		SessionRef:  l.SessionRef,
		PaymentRef:  l.PaymentRef,
		ValidUntil:  l.ValidUntil,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// PayoutOverrideModel is the persistence model for payee payout overrides.
type PayoutOverrideModel struct {
	BaseModel
	PayeeRef           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Retain             bool      `gorm:"not null;default:false"`
	ExternalAccountRef string    `gorm:"size:64"`
	Active             bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for PayoutOverrideModel
func (PayoutOverrideModel) TableName() string {
	return "payout_overrides"
}

// ToDomain converts the model to a domain PayoutOverride
func (m *PayoutOverrideModel) ToDomain() *payment.PayoutOverride {
	return &payment.PayoutOverride{
		BaseEntity:         m.BaseModel.ToDomain(),
		PayeeRef:           m.PayeeRef,
		Retain:             m.Retain,
		ExternalAccountRef: m.ExternalAccountRef,
		Active:             m.Active,
	}
}

// ExternalAccountModel is the persistence model for configured payout accounts.
type ExternalAccountModel struct {
	Ref              string `gorm:"primary_key;size:64"`
	GatewayAccountID string `gorm:"size:128;not null"`
	Description      string `gorm:"size:256"`
	Active           bool   `gorm:"not null;default:true"`
	DeactivatedAt    *time.Time
	CreatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for ExternalAccountModel
func (ExternalAccountModel) TableName() string {
	return "external_accounts"
}

// ToDomain converts the model to a domain ExternalAccount
func (m *ExternalAccountModel) ToDomain() *payment.ExternalAccount {
	return &payment.ExternalAccount{
		Ref:              m.Ref,
		GatewayAccountID: m.GatewayAccountID,
		Description:      m.Description,
		Active:           m.Active,
		DeactivatedAt:    m.DeactivatedAt,
		CreatedAt:        m.CreatedAt,
	}
}

// AuditEntryModel is the append-only persistence model for audit entries.
type AuditEntryModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	PaymentRef string    `gorm:"size:128;index"`
	Action     string    `gorm:"size:64;not null"`
	Detail     string    `gorm:"size:1024"`
	Actor      string    `gorm:"size:64;not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName returns the table name for AuditEntryModel
func (AuditEntryModel) TableName() string {
	return "payment_audit_log"
}
