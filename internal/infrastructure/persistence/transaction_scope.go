package persistence

import (
	"context"

	apppayment "github.com/consultpay/backend/internal/application/payment"
	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/session"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM
// transactions. The duplicate guard and cross-entity sync run their
// read-then-write sequences through it.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction. If the
// function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos apppayment.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides repositories scoped to the
// current transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Payments returns the payment record repository scoped to the transaction.
func (r *gormTransactionalRepositories) Payments() payment.PaymentRecordRepository {
	return NewGormPaymentRecordRepository(r.tx)
}

// Locks returns the payment lock repository scoped to the transaction.
func (r *gormTransactionalRepositories) Locks() payment.PaymentLockRepository {
	return NewGormPaymentLockRepository(r.tx)
}

// Sessions returns the session repository scoped to the transaction.
func (r *gormTransactionalRepositories) Sessions() session.Repository {
	return NewGormSessionRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ apppayment.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ apppayment.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
