package providers

import (
	"fmt"

	"github.com/omnisouq/gateway/internal/domain/region"
	"github.com/sony/gobreaker/v2"
)

// Router selects the adapter for a region. It fails closed: inactive or
// unknown regions and unregistered providers are refused, never defaulted.
type Router struct {
	regions *region.Registry
	factory *Factory
}

// NewRouter creates an adapter router over the region registry and factory.
func NewRouter(regions *region.Registry, factory *Factory) *Router {
	return &Router{regions: regions, factory: factory}
}

// RoutePayment resolves the payment adapter for a region code.
func (r *Router) RoutePayment(regionCode string) (PaymentProvider, *gobreaker.CircuitBreaker[*PaymentResponse], region.Config, error) {
	cfg, err := r.regions.Resolve(regionCode)
	if err != nil {
		return nil, nil, region.Config{}, err
	}
	p, breaker, err := r.factory.Payment(cfg.PaymentProvider)
	if err != nil {
		return nil, nil, region.Config{}, err
	}
	return p, breaker, cfg, nil
}

// RouteShipping resolves the shipping adapter for a region code.
func (r *Router) RouteShipping(regionCode string) (ShippingProvider, *gobreaker.CircuitBreaker[any], region.Config, error) {
	cfg, err := r.regions.Resolve(regionCode)
	if err != nil {
		return nil, nil, region.Config{}, err
	}
	s, breaker, err := r.factory.Shipping(cfg.ShippingProvider)
	if err != nil {
		return nil, nil, region.Config{}, err
	}
	return s, breaker, cfg, nil
}

// PaymentByName returns a payment adapter directly, for webhook ingestion
// where the provider identifies itself.
func (r *Router) PaymentByName(name string) (PaymentProvider, *gobreaker.CircuitBreaker[*PaymentResponse], error) {
	return r.factory.Payment(name)
}

// ShippingByName returns a shipping adapter directly.
func (r *Router) ShippingByName(name string) (ShippingProvider, *gobreaker.CircuitBreaker[any], error) {
	return r.factory.Shipping(name)
}

// CheckStartup verifies that every active region's providers are registered.
// A miss here is a configuration defect: it aborts startup instead of
// surfacing at request time.
func (r *Router) CheckStartup() error {
	for _, code := range r.regions.Codes() {
		cfg, err := r.regions.Resolve(code)
		if err != nil {
			continue // inactive regions are allowed to reference nothing
		}
		if _, _, err := r.factory.Payment(cfg.PaymentProvider); err != nil {
			return fmt.Errorf("region %s: %w", code, err)
		}
		if _, _, err := r.factory.Shipping(cfg.ShippingProvider); err != nil {
			return fmt.Errorf("region %s: %w", code, err)
		}
	}
	return nil
}
