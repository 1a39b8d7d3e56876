package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Lifecycle tests use an interval long enough that no tick fires, so the
// schedulers never touch their (nil) services.

func TestReconciliationSchedulerLifecycle(t *testing.T) {
	s := NewReconciliationScheduler(nil, time.Hour, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Start(context.Background()), "second start is a no-op")

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.NoError(t, s.Stop(stopCtx), "second stop is a no-op")
}

func TestRecoverySchedulerLifecycle(t *testing.T) {
	s := NewRecoveryScheduler(nil, time.Hour, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
}

func TestSchedulerStopBeforeStart(t *testing.T) {
	s := NewReconciliationScheduler(nil, time.Hour, zap.NewNop())
	assert.NoError(t, s.Stop(context.Background()))
}
