package gateway

import (
	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
)

// Registry routes operations to the adapter for a rail family. Adapters
// registered here are expected to already be wrapped with the resilience
// layer.
type Registry struct {
	gateways      map[payment.GatewayFamily]payment.Gateway
	defaultFamily payment.GatewayFamily
}

// NewRegistry creates a registry with the given default family
func NewRegistry(defaultFamily payment.GatewayFamily, gateways ...payment.Gateway) (*Registry, error) {
	r := &Registry{
		gateways:      make(map[payment.GatewayFamily]payment.Gateway, len(gateways)),
		defaultFamily: defaultFamily,
	}
	for _, g := range gateways {
		r.gateways[g.Family()] = g
	}
	if _, ok := r.gateways[defaultFamily]; !ok {
		return nil, shared.NewDomainError(shared.KindValidation, "UNKNOWN_DEFAULT_GATEWAY",
			"no gateway registered for default family "+defaultFamily.String())
	}
	return r, nil
}

// Gateway returns the adapter for the given family
func (r *Registry) Gateway(family payment.GatewayFamily) (payment.Gateway, error) {
	g, ok := r.gateways[family]
	if !ok {
		return nil, shared.NewDomainError(shared.KindValidation, "UNKNOWN_GATEWAY_FAMILY",
			"no gateway registered for family "+family.String())
	}
	return g, nil
}

// Default returns the adapter new authorizations are routed to
func (r *Registry) Default() payment.Gateway {
	return r.gateways[r.defaultFamily]
}

// Ensure Registry implements GatewayRegistry
var _ payment.GatewayRegistry = (*Registry)(nil)
