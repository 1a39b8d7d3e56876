package scheduler

import (
	"context"
	"sync"
	"time"

	apppayment "github.com/consultpay/backend/internal/application/payment"
	"go.uber.org/zap"
)

// RecoveryScheduler periodically reclaims transfers stuck in flight by a
// crashed process and reprocesses payees that have since verified.
type RecoveryScheduler struct {
	processor *apppayment.TransferProcessor
	interval  time.Duration
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRecoveryScheduler creates a new RecoveryScheduler
func NewRecoveryScheduler(processor *apppayment.TransferProcessor, interval time.Duration, logger *zap.Logger) *RecoveryScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &RecoveryScheduler{
		processor: processor,
		interval:  interval,
		logger:    logger,
	}
}

// Start starts the periodic recovery loop
func (s *RecoveryScheduler) Start(ctx context.Context) error {
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

	s.logger.Info("Transfer recovery scheduler started",
		zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the loop and waits for an in-flight pass to finish
func (s *RecoveryScheduler) Stop(ctx context.Context) error {
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
		s.logger.Info("Transfer recovery scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RecoveryScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.processor.RecoverStuckTransfersGlobal(ctx)
			if err != nil {
				s.logger.Error("Transfer recovery run failed", zap.Error(err))
				continue
			}
			if stats.Reclaimed > 0 || stats.Settled > 0 || stats.Failed > 0 {
				s.logger.Info("Transfer recovery run finished",
					zap.Int("reclaimed", stats.Reclaimed),
					zap.Int("settled", stats.Settled),
					zap.Int("failed", stats.Failed))
			}
		}
	}
}
