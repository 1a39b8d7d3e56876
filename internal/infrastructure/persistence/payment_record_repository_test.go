package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/consultpay/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newStoredRecord(t *testing.T, n int, clientRef, payeeRef uuid.UUID) *payment.PaymentRecord {
	t.Helper()
	record, err := payment.NewPaymentRecord(
		fmt.Sprintf("pi_%d", n),
		clientRef, payeeRef, uuid.New(),
		payment.ServiceKindVideoConsultation,
		10000, 2000, 8000, "USD",
		payment.RoutingEscrowPlatform,
		payment.GatewayFamilyCard,
		false,
		fmt.Sprintf("auth_key_%d", n),
	)
	require.NoError(t, err)
	return record
}

func TestPaymentRecordRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save and find by id", func(t *testing.T) {
		repo := NewGormPaymentRecordRepository(newTestDB(t))
		record := newStoredRecord(t, 1, uuid.New(), uuid.New())
		require.NoError(t, repo.Save(ctx, record))

		found, err := repo.FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.ID, found.ID)
		assert.Equal(t, int64(10000), found.Amount)
		assert.Equal(t, int64(2000), found.Commission)
		assert.Equal(t, payment.StatusAuthorized, found.Status)
		assert.Equal(t, payment.RoutingEscrowPlatform, found.RoutingMode)
	})

	t.Run("find by id returns not found", func(t *testing.T) {
		repo := NewGormPaymentRecordRepository(newTestDB(t))
		_, err := repo.FindByID(ctx, "pi_missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("find by idempotency key", func(t *testing.T) {
		repo := NewGormPaymentRecordRepository(newTestDB(t))
		record := newStoredRecord(t, 2, uuid.New(), uuid.New())
		require.NoError(t, repo.Save(ctx, record))

		found, err := repo.FindByIdempotencyKey(ctx, record.IdempotencyKey)
		require.NoError(t, err)
		assert.Equal(t, record.ID, found.ID)

		_, err = repo.FindByIdempotencyKey(ctx, "auth_key_other")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("find active by tuple matches every non-terminal status", func(t *testing.T) {
		repo := NewGormPaymentRecordRepository(newTestDB(t))
		clientRef, payeeRef := uuid.New(), uuid.New()

		authorized := newStoredRecord(t, 3, clientRef, payeeRef)
		require.NoError(t, repo.Save(ctx, authorized))

		actionRequired := newStoredRecord(t, 4, clientRef, payeeRef)
		require.NoError(t, actionRequired.MarkActionRequired())
		require.NoError(t, repo.Save(ctx, actionRequired))

		captured := newStoredRecord(t, 5, clientRef, payeeRef)
		require.NoError(t, captured.MarkCaptured(10000, ""))
		require.NoError(t, repo.Save(ctx, captured))

		cancelled := newStoredRecord(t, 6, clientRef, payeeRef)
		require.NoError(t, cancelled.MarkCancelled("client abandoned"))
		require.NoError(t, repo.Save(ctx, cancelled))

		active, err := repo.FindActiveByTuple(ctx, payment.LockKey{
			ClientRef: clientRef, PayeeRef: payeeRef, Amount: 10000, Currency: "USD",
		})
		require.NoError(t, err)
		require.Len(t, active, 3)
		assert.Equal(t, authorized.ID, active[0].ID)
		assert.Equal(t, actionRequired.ID, active[1].ID)
		assert.Equal(t, captured.ID, active[2].ID)

		other, err := repo.FindActiveByTuple(ctx, payment.LockKey{
			ClientRef: clientRef, PayeeRef: payeeRef, Amount: 9999, Currency: "USD",
		})
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("captured payment stays visible to the duplicate scan", func(t *testing.T) {
		repo := NewGormPaymentRecordRepository(newTestDB(t))
		clientRef, payeeRef := uuid.New(), uuid.New()

		captured := newStoredRecord(t, 14, clientRef, payeeRef)
		require.NoError(t, captured.MarkCaptured(10000, "tr_split"))
		require.False(t, captured.Status.IsTerminal())
		require.NoError(t, repo.Save(ctx, captured))

		active, err := repo.FindActiveByTuple(ctx, payment.LockKey{
			ClientRef: clientRef, PayeeRef: payeeRef, Amount: 10000, Currency: "USD",
		})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, captured.ID, active[0].ID)
		assert.Equal(t, payment.StatusCaptured, active[0].Status)
	})

	t.Run("find authorized before cutoff", func(t *testing.T) {
		repo := NewGormPaymentRecordRepository(newTestDB(t))
		cutoff := time.Now().Add(-time.Hour)

		aged := newStoredRecord(t, 7, uuid.New(), uuid.New())
		aged.CreatedAt = time.Now().Add(-2 * time.Hour)
		require.NoError(t, repo.Save(ctx, aged))

		fresh := newStoredRecord(t, 8, uuid.New(), uuid.New())
		require.NoError(t, repo.Save(ctx, fresh))

		agedCaptured := newStoredRecord(t, 9, uuid.New(), uuid.New())
		agedCaptured.CreatedAt = time.Now().Add(-2 * time.Hour)
		require.NoError(t, agedCaptured.MarkCaptured(10000, ""))
		require.NoError(t, repo.Save(ctx, agedCaptured))

		stale, err := repo.FindAuthorizedBefore(ctx, cutoff)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, aged.ID, stale[0].ID)
	})

	t.Run("find uncaptured by session", func(t *testing.T) {
		repo := NewGormPaymentRecordRepository(newTestDB(t))

		record := newStoredRecord(t, 10, uuid.New(), uuid.New())
		require.NoError(t, repo.Save(ctx, record))

		unrelated := newStoredRecord(t, 11, uuid.New(), uuid.New())
		require.NoError(t, repo.Save(ctx, unrelated))

		uncaptured, err := repo.FindUncapturedBySession(ctx, record.SessionRef)
		require.NoError(t, err)
		require.Len(t, uncaptured, 1)
		assert.Equal(t, record.ID, uncaptured[0].ID)

		require.NoError(t, record.MarkCaptured(10000, ""))
		require.NoError(t, repo.Save(ctx, record))

		uncaptured, err = repo.FindUncapturedBySession(ctx, record.SessionRef)
		require.NoError(t, err)
		assert.Empty(t, uncaptured)
	})

	t.Run("save updates existing row instead of inserting", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormPaymentRecordRepository(db)
		record := newStoredRecord(t, 12, uuid.New(), uuid.New())
		require.NoError(t, repo.Save(ctx, record))

		require.NoError(t, record.MarkCaptured(10000, "tr_1"))
		require.NoError(t, repo.Save(ctx, record))

		var count int64
		require.NoError(t, db.Model(&models.PaymentRecordModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		found, err := repo.FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, found.Status)
		assert.Equal(t, "tr_1", found.TransferID)
	})

	t.Run("legacy schema row adapted to minor units on read", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormPaymentRecordRepository(db)

		amount, commission, payeeShare := 100.00, 20.00, 80.00
		legacy := models.PaymentRecordModel{
			ID:               "pi_legacy",
			SchemaVersion:    1,
			ClientRef:        uuid.New(),
			PayeeRef:         uuid.New(),
			SessionRef:       uuid.New(),
			ServiceKind:      string(payment.ServiceKindVideoConsultation),
			Currency:         "USD",
			LegacyAmount:     &amount,
			LegacyCommission: &commission,
			LegacyPayeeShare: &payeeShare,
			RoutingMode:      payment.RoutingEscrowPlatform.String(),
			Status:           payment.StatusAuthorized.String(),
			GatewayFamily:    payment.GatewayFamilyCard.String(),
			IdempotencyKey:   "auth_key_legacy",
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}
		require.NoError(t, db.Create(&legacy).Error)

		found, err := repo.FindByID(ctx, "pi_legacy")
		require.NoError(t, err)
		assert.Equal(t, int64(10000), found.Amount)
		assert.Equal(t, int64(2000), found.Commission)
		assert.Equal(t, int64(8000), found.PayeeShare)
		assert.Equal(t, payment.SchemaVersion, found.SchemaVer)
	})

	t.Run("with tx shares the transaction handle", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormPaymentRecordRepository(db)
		record := newStoredRecord(t, 13, uuid.New(), uuid.New())

		err := db.Transaction(func(tx *gorm.DB) error {
			return repo.WithTx(tx).Save(ctx, record)
		})
		require.NoError(t, err)

		_, err = repo.FindByID(ctx, record.ID)
		assert.NoError(t, err)
	})
}
