package payment

import (
	"context"
	"errors"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/session"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DuplicateGuard prevents two authorizations for the same
// (client, payee, amount, currency) tuple. The lock record lives in the
// store so the guard holds under horizontal scale-out; no in-process
// mutex is involved.
type DuplicateGuard struct {
	scope        TransactionScope
	paymentRepo  payment.PaymentRecordRepository
	sessionRepo  session.Repository
	lockValidity time.Duration
	logger       *zap.Logger
}

// NewDuplicateGuard creates a new DuplicateGuard
func NewDuplicateGuard(
	scope TransactionScope,
	paymentRepo payment.PaymentRecordRepository,
	sessionRepo session.Repository,
	lockValidity time.Duration,
	logger *zap.Logger,
) *DuplicateGuard {
	if lockValidity <= 0 {
		lockValidity = payment.DefaultLockValidity
	}
	return &DuplicateGuard{
		scope:        scope,
		paymentRepo:  paymentRepo,
		sessionRepo:  sessionRepo,
		lockValidity: lockValidity,
		logger:       logger,
	}
}

// LockHandle is the caller's hold on an acquired lock. The caller must
// either Bind the created payment ID on success or Release on any
// failure path before returning to the client, so legitimate retries are
// never blocked for the full validity window.
type LockHandle struct {
	guard *DuplicateGuard
	lock  *payment.PaymentLock
	done  bool
}

// Acquire takes the duplicate-guard lock for the request tuple. A store
// transaction failure fails closed: the request is rejected rather than
// risking a race-created duplicate.
func (g *DuplicateGuard) Acquire(ctx context.Context, key payment.LockKey, sessionRef uuid.UUID) (*LockHandle, error) {
	// Defense in depth, outside the lock transaction: an active payment
	// for the same tuple whose session has not failed is a duplicate even
	// if its lock already expired.
	if err := g.rejectActivePayments(ctx, key); err != nil {
		return nil, err
	}

	newLock := payment.NewPaymentLock(key, sessionRef, g.lockValidity)

	err := g.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.Locks().FindByKey(ctx, key)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		if existing != nil && !existing.IsExpired(time.Now()) {
			stale, err := g.lockIsStale(ctx, repos, existing)
			if err != nil {
				return err
			}
			if !stale {
				return shared.ErrDuplicateRequest
			}
		}

		// Reads are done; writes follow.
		if existing != nil {
			if err := repos.Locks().Delete(ctx, existing.ID); err != nil {
				return err
			}
		}
		return repos.Locks().Create(ctx, newLock)
	})
	if err != nil {
		if shared.IsKind(err, shared.KindDuplicateRequest) {
			return nil, err
		}
		g.logger.Error("Payment lock transaction failed, rejecting request",
			zap.String("client_ref", key.ClientRef.String()),
			zap.String("payee_ref", key.PayeeRef.String()),
			zap.Error(err))
		return nil, shared.WrapDomainError(shared.KindDuplicateRequest, "LOCK_UNAVAILABLE",
			"could not acquire the payment lock, request rejected", err)
	}

	return &LockHandle{guard: g, lock: newLock}, nil
}

// lockIsStale reports whether the lock's correlated session has reached a
// failure-equivalent status, which releases the tuple for a new attempt.
func (g *DuplicateGuard) lockIsStale(ctx context.Context, repos TransactionalRepositories, lock *payment.PaymentLock) (bool, error) {
	sess, err := repos.Sessions().FindByID(ctx, lock.SessionRef)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// The session the lock was taken for no longer exists.
			return true, nil
		}
		return false, err
	}
	return sess.Status.IsFailureEquivalent(), nil
}

// rejectActivePayments scans non-terminal payments for the tuple.
func (g *DuplicateGuard) rejectActivePayments(ctx context.Context, key payment.LockKey) error {
	active, err := g.paymentRepo.FindActiveByTuple(ctx, key)
	if err != nil {
		return shared.WrapDomainError(shared.KindDuplicateRequest, "LOCK_UNAVAILABLE",
			"could not verify active payments, request rejected", err)
	}
	for i := range active {
		sess, err := g.sessionRepo.FindByID(ctx, active[i].SessionRef)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return shared.WrapDomainError(shared.KindDuplicateRequest, "LOCK_UNAVAILABLE",
				"could not verify active payments, request rejected", err)
		}
		if !sess.Status.IsFailureEquivalent() {
			return shared.NewDomainError(shared.KindDuplicateRequest, "DUPLICATE_REQUEST",
				"an identical payment is already processing for this consultation")
		}
	}
	return nil
}

// Bind attaches the created payment ID to the held lock.
func (h *LockHandle) Bind(ctx context.Context, paymentRef string) error {
	if h.done {
		return nil
	}
	h.done = true
	h.lock.Bind(paymentRef)
	return h.guard.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.Locks().Save(ctx, h.lock)
	})
}

// Release deletes the held lock so the client can retry immediately.
// Errors are logged, not returned: a leaked lock expires on its own.
func (h *LockHandle) Release(ctx context.Context) {
	if h.done {
		return
	}
	h.done = true
	err := h.guard.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.Locks().Delete(ctx, h.lock.ID)
	})
	if err != nil {
		h.guard.logger.Warn("Failed to release payment lock, it will expire",
			zap.String("lock_id", h.lock.ID.String()),
			zap.Time("valid_until", h.lock.ValidUntil),
			zap.Error(err))
	}
}
