package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/normalizer"
	"github.com/omnisouq/gateway/internal/providers"
)

func validShippingInput() normalizer.ShippingInput {
	return normalizer.ShippingInput{
		OrderID: uuid.New().String(),
		Region:  "in",
		Method:  "standard",
		Customer: normalizer.Customer{
			ID:    uuid.New().String(),
			Email: "buyer@example.com",
			Name:  "A Buyer",
		},
		ShippingAddress: normalizer.Address{Line1: "12 MG Road", City: "Bengaluru", Country: "IN"},
		Items: []normalizer.LineItem{
			{ID: "sku-1", Name: "Widget", Quantity: 1, UnitPriceMinor: 5000, TotalPriceMinor: 5000},
		},
	}
}

// timeNowPlusHour is a cutoff in the future: every unsettled row counts as
// stuck against it.
func timeNowPlusHour() time.Time { return time.Now().Add(time.Hour) }

func TestCreateShipmentBooksWithRegionalCarrier(t *testing.T) {
	f := newServiceFixture()

	sh, err := f.shipping.CreateShipment(context.Background(), validShippingInput())
	require.NoError(t, err)
	assert.Equal(t, "aramex", sh.Provider)
	assert.Equal(t, shipment.StatusCreated, sh.Status)
	require.NotNil(t, sh.TrackingReference)
	assert.EqualValues(t, 1, f.shipProvider.CreateCalls.Load())
}

func TestCreateShipmentCarrierRejectionSettlesFailed(t *testing.T) {
	f := newServiceFixture()
	f.shipProvider.CreateShipmentFunc = func(ctx context.Context, req providers.ShipmentCreateRequest) (*providers.ShipmentResponse, error) {
		return nil, fmt.Errorf("address unserviceable: %w", domainErrors.ErrProviderRejected)
	}

	_, err := f.shipping.CreateShipment(context.Background(), validShippingInput())
	require.Error(t, err)

	// The pending row settled failed rather than vanishing.
	stuck, err := f.shipments.ListStuck(context.Background(), timeNowPlusHour(), 10)
	require.NoError(t, err)
	assert.Empty(t, stuck)
}

func TestCreateShipmentTimeoutLeavesPendingForReconciler(t *testing.T) {
	f := newServiceFixture()
	f.shipProvider.CreateShipmentFunc = func(ctx context.Context, req providers.ShipmentCreateRequest) (*providers.ShipmentResponse, error) {
		return nil, fmt.Errorf("book shipment: %w", domainErrors.ErrProviderTimeout)
	}

	_, err := f.shipping.CreateShipment(context.Background(), validShippingInput())
	require.Error(t, err)

	stuck, err := f.shipments.ListStuck(context.Background(), timeNowPlusHour(), 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, shipment.StatusPending, stuck[0].Status)
}

func TestRefreshTrackingAdvancesStatus(t *testing.T) {
	f := newServiceFixture()
	s, err := shipment.NewShipmentRequest(uuid.New(), "IN", "aramex", "standard")
	require.NoError(t, err)
	require.NoError(t, s.MarkCreated("ARX777"))
	require.NoError(t, f.shipments.Create(context.Background(), s))

	got, err := f.shipping.RefreshTracking(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, shipment.StatusInTransit, got.Status)
	assert.EqualValues(t, 1, f.shipProvider.TrackingCalls.Load())
}

func TestGetRatesRequiresActiveRegion(t *testing.T) {
	f := newServiceFixture()

	_, err := f.shipping.GetRates(context.Background(), "OM", providers.RateRequest{Method: "standard", WeightGrams: 500})
	assert.ErrorIs(t, err, domainErrors.ErrRegionInactive)

	rates, err := f.shipping.GetRates(context.Background(), "IN", providers.RateRequest{Method: "standard", WeightGrams: 500})
	require.NoError(t, err)
	require.NotEmpty(t, rates)
}
