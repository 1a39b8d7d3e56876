package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/session"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLockKey() payment.LockKey {
	return payment.LockKey{ClientRef: uuid.New(), PayeeRef: uuid.New(), Amount: 10000, Currency: "USD"}
}

func TestDuplicateGuardAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire on a free tuple", func(t *testing.T) {
		f := newFixture()
		handle, err := f.guard.Acquire(ctx, testLockKey(), uuid.New())
		require.NoError(t, err)
		require.NotNil(t, handle)
		assert.Len(t, f.locks.locks, 1)
	})

	t.Run("concurrent identical request rejected", func(t *testing.T) {
		f := newFixture()
		key := testLockKey()
		sessionRef := uuid.New()
		f.seedSession(sessionRef, key.ClientRef, key.PayeeRef, session.StatusActive, 0)

		_, err := f.guard.Acquire(ctx, key, sessionRef)
		require.NoError(t, err)

		_, err = f.guard.Acquire(ctx, key, sessionRef)
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindDuplicateRequest))
	})

	t.Run("expired lock is replaced", func(t *testing.T) {
		f := newFixture()
		key := testLockKey()
		expired := payment.NewPaymentLock(key, uuid.New(), time.Nanosecond)
		require.NoError(t, f.locks.Create(ctx, expired))
		time.Sleep(2 * time.Millisecond)

		handle, err := f.guard.Acquire(ctx, key, uuid.New())
		require.NoError(t, err)
		require.NotNil(t, handle)
		assert.Len(t, f.locks.locks, 1)
		_, held := f.locks.locks[expired.ID]
		assert.False(t, held)
	})

	t.Run("lock with failed session is stale", func(t *testing.T) {
		f := newFixture()
		key := testLockKey()
		sessionRef := uuid.New()
		f.seedSession(sessionRef, key.ClientRef, key.PayeeRef, session.StatusFailed, 0)
		require.NoError(t, f.locks.Create(ctx, payment.NewPaymentLock(key, sessionRef, time.Hour)))

		handle, err := f.guard.Acquire(ctx, key, uuid.New())
		require.NoError(t, err)
		require.NotNil(t, handle)
	})

	t.Run("lock whose session vanished is stale", func(t *testing.T) {
		f := newFixture()
		key := testLockKey()
		require.NoError(t, f.locks.Create(ctx, payment.NewPaymentLock(key, uuid.New(), time.Hour)))

		_, err := f.guard.Acquire(ctx, key, uuid.New())
		require.NoError(t, err)
	})

	t.Run("store failure fails closed", func(t *testing.T) {
		f := newFixture()
		f.scope.execErr = errors.New("connection reset")

		_, err := f.guard.Acquire(ctx, testLockKey(), uuid.New())
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindDuplicateRequest))

		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "LOCK_UNAVAILABLE", de.Code)
	})

	t.Run("active payment for tuple rejected even without a lock", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)
		key := payment.LockKey{
			ClientRef: record.ClientRef,
			PayeeRef:  record.PayeeRef,
			Amount:    record.Amount,
			Currency:  record.Currency,
		}
		// active session keeps the payment a live duplicate
		f.seedSession(record.SessionRef, record.ClientRef, record.PayeeRef, session.StatusActive, 0)

		_, err := f.guard.Acquire(ctx, key, uuid.New())
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindDuplicateRequest))
	})

	t.Run("active payment with failed session does not block", func(t *testing.T) {
		f := newFixture()
		record := f.seedPayment(payment.RoutingDirectSplit)
		f.seedSession(record.SessionRef, record.ClientRef, record.PayeeRef, session.StatusCancelled, 0)

		key := payment.LockKey{
			ClientRef: record.ClientRef,
			PayeeRef:  record.PayeeRef,
			Amount:    record.Amount,
			Currency:  record.Currency,
		}
		_, err := f.guard.Acquire(ctx, key, uuid.New())
		require.NoError(t, err)
	})
}

func TestLockHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("bind attaches the payment ref", func(t *testing.T) {
		f := newFixture()
		handle, err := f.guard.Acquire(ctx, testLockKey(), uuid.New())
		require.NoError(t, err)

		require.NoError(t, handle.Bind(ctx, "pi_bound"))
		for _, l := range f.locks.locks {
			assert.Equal(t, "pi_bound", l.PaymentRef)
		}
	})

	t.Run("release frees the tuple for immediate retry", func(t *testing.T) {
		f := newFixture()
		key := testLockKey()
		handle, err := f.guard.Acquire(ctx, key, uuid.New())
		require.NoError(t, err)

		handle.Release(ctx)
		assert.Empty(t, f.locks.locks)

		_, err = f.guard.Acquire(ctx, key, uuid.New())
		require.NoError(t, err)
	})

	t.Run("release after bind is a no-op", func(t *testing.T) {
		f := newFixture()
		handle, err := f.guard.Acquire(ctx, testLockKey(), uuid.New())
		require.NoError(t, err)

		require.NoError(t, handle.Bind(ctx, "pi_kept"))
		handle.Release(ctx)
		assert.Len(t, f.locks.locks, 1)
	})
}
