package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(Config{
		Name:             "test",
		FailureThreshold: threshold,
		ResetTimeout:     resetTimeout,
	}, zap.NewNop())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	boom := errors.New("gateway down")

	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return boom
	}

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), fail)
		assert.Equal(t, boom, err)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 3, calls)

	// Subsequent calls fail fast with zero gateway invocations.
	err := cb.Execute(context.Background(), fail)
	assert.True(t, shared.IsKind(err, shared.KindCircuitOpen))
	assert.Equal(t, 3, calls)
}

func TestCircuitBreaker_RejectionsDoNotTrip(t *testing.T) {
	cb := newTestBreaker(2, time.Minute)

	declined := func(ctx context.Context) error {
		return shared.NewDomainError(shared.KindGatewayRejection, "GATEWAY_REJECTED", "card declined")
	}

	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), declined)
		require.Error(t, err)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	boom := errors.New("gateway down")

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return boom })
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return boom })
	assert.Equal(t, 2, cb.FailureCount())

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 0, cb.FailureCount())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)
	boom := errors.New("gateway down")

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return boom })
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)

	// Exactly one probe is allowed; its success closes the circuit and
	// resets the counter.
	calls := 0
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)
	boom := errors.New("gateway down")

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return boom })
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return boom })
	assert.Equal(t, boom, err)
	assert.Equal(t, StateOpen, cb.State())

	// Timer was re-armed: still failing fast before the next window.
	err = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.True(t, shared.IsKind(err, shared.KindCircuitOpen))
}

func TestCircuitBreaker_PerCallTimeout(t *testing.T) {
	cb := NewCircuitBreaker(Config{
		Name:             "timeout",
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
		PerCallTimeout:   10 * time.Millisecond,
	}, zap.NewNop())

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, cb.FailureCount())
}
