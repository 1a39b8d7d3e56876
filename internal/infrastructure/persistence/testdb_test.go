package persistence

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/consultpay/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBCounter int64

// newTestDB opens an isolated in-memory sqlite database with the payment
// schema migrated. Error translation is on so unique-constraint hits
// surface as gorm.ErrDuplicatedKey, same as the postgres setup.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	require.NoError(t, db.AutoMigrate(
		&models.PaymentRecordModel{},
		&models.PendingTransferModel{},
		&models.PaymentLockModel{},
		&models.ConsultationSessionModel{},
		&models.PayoutOverrideModel{},
		&models.ExternalAccountModel{},
		&models.AuditEntryModel{},
		&models.ServicePriceModel{},
		&models.PromotionModel{},
		&models.DiscountCodeModel{},
	))
	return db
}
