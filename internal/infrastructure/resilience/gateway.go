package resilience

import (
	"context"

	"github.com/consultpay/backend/internal/domain/payment"
)

// ResilientGateway decorates a payment gateway so every call runs through
// a circuit breaker. Services depend on payment.Gateway and never see the
// breaker directly.
type ResilientGateway struct {
	inner   payment.Gateway
	breaker *CircuitBreaker
}

// WrapGateway wraps the gateway with the given breaker.
func WrapGateway(inner payment.Gateway, breaker *CircuitBreaker) *ResilientGateway {
	return &ResilientGateway{inner: inner, breaker: breaker}
}

// Family returns the rail family of the wrapped gateway.
func (g *ResilientGateway) Family() payment.GatewayFamily {
	return g.inner.Family()
}

// Breaker exposes the underlying breaker for health reporting.
func (g *ResilientGateway) Breaker() *CircuitBreaker {
	return g.breaker
}

// Authorize creates a manual-capture authorization through the breaker.
func (g *ResilientGateway) Authorize(ctx context.Context, req payment.AuthorizeRequest) (*payment.AuthorizeResult, error) {
	var result *payment.AuthorizeResult
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = g.inner.Authorize(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Capture collects held funds through the breaker.
func (g *ResilientGateway) Capture(ctx context.Context, authorizationID, idempotencyKey string) (*payment.CaptureResult, error) {
	var result *payment.CaptureResult
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = g.inner.Capture(ctx, authorizationID, idempotencyKey)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel voids an uncaptured authorization through the breaker.
func (g *ResilientGateway) Cancel(ctx context.Context, authorizationID, idempotencyKey string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Cancel(ctx, authorizationID, idempotencyKey)
	})
}

// Refund reverses a captured payment through the breaker.
func (g *ResilientGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	var result *payment.RefundResult
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = g.inner.Refund(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transfer moves escrow-held funds through the breaker.
func (g *ResilientGateway) Transfer(ctx context.Context, req payment.TransferRequest) (*payment.TransferResult, error) {
	var result *payment.TransferResult
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = g.inner.Transfer(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RetrieveStatus reads the authoritative status through the breaker.
func (g *ResilientGateway) RetrieveStatus(ctx context.Context, authorizationID string) (payment.AuthorizationStatus, error) {
	var status payment.AuthorizationStatus
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		status, callErr = g.inner.RetrieveStatus(ctx, authorizationID)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// Ensure ResilientGateway implements Gateway
var _ payment.Gateway = (*ResilientGateway)(nil)
