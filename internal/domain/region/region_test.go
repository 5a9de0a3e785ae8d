package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
)

func testRegistry() *Registry {
	return NewRegistry([]Config{
		{Code: "IN", Currency: "INR", PaymentProvider: "razorpay", ShippingProvider: "aramex", IsActive: true},
		{Code: "OM", Currency: "OMR", PaymentProvider: "oman_net", ShippingProvider: "aramex", IsActive: false},
	})
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	cfg, err := testRegistry().Resolve("in")
	require.NoError(t, err)
	assert.Equal(t, "razorpay", cfg.PaymentProvider)
	assert.Equal(t, "INR", cfg.Currency)
}

func TestResolveFailsClosedOnUnknownRegion(t *testing.T) {
	_, err := testRegistry().Resolve("ZZ")
	assert.ErrorIs(t, err, domainErrors.ErrRegionNotFound)
}

func TestResolveFailsClosedOnInactiveRegion(t *testing.T) {
	_, err := testRegistry().Resolve("OM")
	assert.ErrorIs(t, err, domainErrors.ErrRegionInactive)
}

func TestCodesListsAllConfiguredRegions(t *testing.T) {
	assert.Equal(t, []string{"IN", "OM"}, testRegistry().Codes())
}
