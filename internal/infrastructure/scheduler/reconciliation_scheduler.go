package scheduler

import (
	"context"
	"sync"
	"time"

	apppayment "github.com/consultpay/backend/internal/application/payment"
	"go.uber.org/zap"
)

// ReconciliationScheduler runs periodic reconciliation passes. The pass
// itself is self-idempotent and safe to overlap with live client
// operations, so there is no run-to-run exclusion here.
type ReconciliationScheduler struct {
	service  *apppayment.ReconciliationService
	interval time.Duration
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewReconciliationScheduler creates a new ReconciliationScheduler
func NewReconciliationScheduler(service *apppayment.ReconciliationService, interval time.Duration, logger *zap.Logger) *ReconciliationScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReconciliationScheduler{
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Start starts the periodic reconciliation loop
func (s *ReconciliationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Reconciliation scheduler started",
		zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the loop and waits for an in-flight pass to finish
func (s *ReconciliationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Reconciliation scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ReconciliationScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.service.Run(ctx); err != nil {
				s.logger.Error("Reconciliation run failed", zap.Error(err))
			}
		}
	}
}
