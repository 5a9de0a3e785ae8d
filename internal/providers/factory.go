package providers

import (
	"fmt"
	"time"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

// Factory holds the adapter instances registered at startup, each behind its
// own circuit breaker so one misbehaving provider cannot exhaust the others'
// capacity.
type Factory struct {
	payments         map[string]PaymentProvider
	shippings        map[string]ShippingProvider
	paymentBreakers  map[string]*gobreaker.CircuitBreaker[*PaymentResponse]
	shippingBreakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewFactory creates an empty adapter factory.
func NewFactory() *Factory {
	return &Factory{
		payments:         make(map[string]PaymentProvider),
		shippings:        make(map[string]ShippingProvider),
		paymentBreakers:  make(map[string]*gobreaker.CircuitBreaker[*PaymentResponse]),
		shippingBreakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// RegisterPayment adds a payment adapter and its circuit breaker.
func (f *Factory) RegisterPayment(p PaymentProvider) {
	f.payments[p.Name()] = p
	f.paymentBreakers[p.Name()] = gobreaker.NewCircuitBreaker[*PaymentResponse](breakerSettings(p.Name()))
}

// RegisterShipping adds a shipping adapter and its circuit breaker.
func (f *Factory) RegisterShipping(s ShippingProvider) {
	f.shippings[s.Name()] = s
	f.shippingBreakers[s.Name()] = gobreaker.NewCircuitBreaker[any](breakerSettings(s.Name()))
}

func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	}
}

// Payment returns a registered payment adapter and its breaker.
func (f *Factory) Payment(name string) (PaymentProvider, *gobreaker.CircuitBreaker[*PaymentResponse], error) {
	p, ok := f.payments[name]
	if !ok {
		return nil, nil, fmt.Errorf("payment provider %q: %w", name, domainErrors.ErrProviderNotFound)
	}
	return p, f.paymentBreakers[name], nil
}

// Shipping returns a registered shipping adapter and its breaker.
func (f *Factory) Shipping(name string) (ShippingProvider, *gobreaker.CircuitBreaker[any], error) {
	s, ok := f.shippings[name]
	if !ok {
		return nil, nil, fmt.Errorf("shipping provider %q: %w", name, domainErrors.ErrProviderNotFound)
	}
	return s, f.shippingBreakers[name], nil
}

// PaymentNames returns all registered payment provider names.
func (f *Factory) PaymentNames() []string {
	names := make([]string, 0, len(f.payments))
	for name := range f.payments {
		names = append(names, name)
	}
	return names
}

// ShippingNames returns all registered shipping provider names.
func (f *Factory) ShippingNames() []string {
	names := make([]string, 0, len(f.shippings))
	for name := range f.shippings {
		names = append(names, name)
	}
	return names
}
