package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/consultpay/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// String returns the string representation of State.
func (s State) String() string {
	return string(s)
}

// Config holds circuit breaker parameters.
type Config struct {
	Name string
	// FailureThreshold is the number of consecutive failures in the
	// closed state that opens the circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before the next
	// call becomes a half-open probe.
	ResetTimeout time.Duration
	// PerCallTimeout bounds the local wait for each wrapped call. The
	// remote side effect may still land after a timeout, so idempotency
	// keys, not cancellation, are the correctness anchor.
	PerCallTimeout time.Duration
}

// DefaultConfig returns circuit breaker defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		PerCallTimeout:   15 * time.Second,
	}
}

// CircuitBreaker wraps gateway calls, failing fast while the dependency
// is down. State is process-local and rebuilt on restart: a restart
// starts closed, which is safe.
type CircuitBreaker struct {
	config Config
	logger *zap.Logger

	mu           sync.Mutex
	state        State
	failureCount int
	nextRetryAt  time.Time
	probing      bool
}

// NewCircuitBreaker creates a circuit breaker in the closed state.
func NewCircuitBreaker(config Config, logger *zap.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the current consecutive-failure counter.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Execute runs fn through the breaker. While open it fails fast with a
// circuit-open error without reaching the network. Only failures that
// classify as gateway-transient count toward opening the circuit;
// rejections and business failures pass through without tripping it,
// and a circuit-open error is never itself counted as a new failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	callCtx := ctx
	if cb.config.PerCallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cb.config.PerCallTimeout)
		defer cancel()
	}

	err := fn(callCtx)
	cb.afterCall(err)
	return err
}

// beforeCall admits or rejects the call based on the current state.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Now().Before(cb.nextRetryAt) {
			return shared.ErrCircuitOpen
		}
		// Reset timeout elapsed: admit exactly one probe.
		cb.state = StateHalfOpen
		cb.probing = true
		cb.logger.Info("Circuit breaker probing",
			zap.String("breaker", cb.config.Name))
		return nil
	case StateHalfOpen:
		if cb.probing {
			return shared.ErrCircuitOpen
		}
		cb.probing = true
		return nil
	}
	return nil
}

// afterCall records the outcome and moves the state machine.
func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && countsAsFailure(err)

	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failureCount = 0
			return
		}
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.probing = false
		if failed {
			cb.trip()
			return
		}
		cb.state = StateClosed
		cb.failureCount = 0
		cb.logger.Info("Circuit breaker closed",
			zap.String("breaker", cb.config.Name))
	}
}

// trip opens the circuit and arms the reset timer.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.nextRetryAt = time.Now().Add(cb.config.ResetTimeout)
	cb.logger.Warn("Circuit breaker opened",
		zap.String("breaker", cb.config.Name),
		zap.Int("failure_count", cb.failureCount),
		zap.Time("next_retry_at", cb.nextRetryAt))
}

// countsAsFailure reports whether err should trip the breaker. Gateway
// rejections are terminal business outcomes, not dependency failures.
func countsAsFailure(err error) bool {
	switch shared.KindOf(err) {
	case shared.KindGatewayRejection, shared.KindValidation,
		shared.KindBusinessRule, shared.KindCircuitOpen:
		return false
	}
	return true
}
