package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/region"
)

func twoRegionRegistry() *region.Registry {
	return region.NewRegistry([]region.Config{
		{Code: "QA", Currency: "QAR", PaymentProvider: "dibsy", ShippingProvider: "aramex", IsActive: true},
		{Code: "OM", Currency: "OMR", PaymentProvider: "oman_net", ShippingProvider: "aramex", IsActive: false},
	})
}

func TestRoutePaymentResolvesRegionalAdapter(t *testing.T) {
	factory := NewFactory()
	factory.RegisterPayment(NewMockPaymentProvider("dibsy"))
	factory.RegisterShipping(NewMockShippingProvider("aramex"))
	router := NewRouter(twoRegionRegistry(), factory)

	p, breaker, cfg, err := router.RoutePayment("qa")
	require.NoError(t, err)
	assert.Equal(t, "dibsy", p.Name())
	assert.NotNil(t, breaker)
	assert.Equal(t, "QAR", cfg.Currency)
}

func TestRoutePaymentFailsClosedOnUnregisteredProvider(t *testing.T) {
	// Region table references dibsy but the adapter was never registered.
	router := NewRouter(twoRegionRegistry(), NewFactory())

	_, _, _, err := router.RoutePayment("QA")
	assert.ErrorIs(t, err, domainErrors.ErrProviderNotFound)
}

func TestRouteShippingFailsClosedOnInactiveRegion(t *testing.T) {
	factory := NewFactory()
	factory.RegisterShipping(NewMockShippingProvider("aramex"))
	router := NewRouter(twoRegionRegistry(), factory)

	_, _, _, err := router.RouteShipping("OM")
	assert.ErrorIs(t, err, domainErrors.ErrRegionInactive)
}

func TestCheckStartupRejectsUnboundActiveRegion(t *testing.T) {
	factory := NewFactory()
	factory.RegisterShipping(NewMockShippingProvider("aramex"))
	router := NewRouter(twoRegionRegistry(), factory)

	err := router.CheckStartup()
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrProviderNotFound)
	assert.Contains(t, err.Error(), "QA")
}

func TestCheckStartupIgnoresInactiveRegions(t *testing.T) {
	factory := NewFactory()
	factory.RegisterPayment(NewMockPaymentProvider("dibsy"))
	factory.RegisterShipping(NewMockShippingProvider("aramex"))
	// oman_net stays unregistered; OM is inactive so startup must still pass.
	router := NewRouter(twoRegionRegistry(), factory)

	assert.NoError(t, router.CheckStartup())
}

func TestFactoryBreakersAreIsolatedPerProvider(t *testing.T) {
	factory := NewFactory()
	factory.RegisterPayment(NewMockPaymentProvider("dibsy"))
	factory.RegisterPayment(NewMockPaymentProvider("razorpay"))

	_, b1, err := factory.Payment("dibsy")
	require.NoError(t, err)
	_, b2, err := factory.Payment("razorpay")
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)
}
