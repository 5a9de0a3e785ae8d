package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/domain/webhook"
	"github.com/omnisouq/gateway/internal/providers"
)

func paymentWebhookResult(eventID, reference string, status intent.Status) *providers.WebhookResult {
	return &providers.WebhookResult{
		EventID:       eventID,
		EventType:     "payment." + string(status),
		Kind:          webhook.KindPayment,
		Reference:     reference,
		PaymentStatus: status,
	}
}

func TestIngestPaymentWebhookSettlesIntent(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusProcessing, "order_rzp_w1")
	f.payProvider.ProcessWebhookFunc = func(payload []byte) (*providers.WebhookResult, error) {
		return paymentWebhookResult("evt_1", "order_rzp_w1", intent.StatusCompleted), nil
	}

	err := f.webhooks.IngestPayment(context.Background(), "razorpay", []byte(`{"event":"payment.captured"}`), "sig")
	require.NoError(t, err)

	stored, err := f.intents.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusCompleted, stored.Status)
	assert.Equal(t, 1, f.notifier.PaidCount())

	evt, err := f.events.GetByProviderEventID(context.Background(), "razorpay", "evt_1")
	require.NoError(t, err)
	assert.True(t, evt.Processed)
}

func TestIngestPaymentWebhookRejectsBadSignature(t *testing.T) {
	f := newServiceFixture()
	f.payProvider.ValidateWebhookFunc = func(payload []byte, signature string) bool { return false }

	err := f.webhooks.IngestPayment(context.Background(), "razorpay", []byte(`{}`), "forged")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrWebhookSignatureInvalid)

	// Nothing was recorded for the forged delivery.
	_, err = f.events.GetByProviderEventID(context.Background(), "razorpay", "evt_1")
	assert.ErrorIs(t, err, domainErrors.ErrWebhookEventNotFound)
}

func TestIngestPaymentWebhookUnknownProvider(t *testing.T) {
	f := newServiceFixture()

	err := f.webhooks.IngestPayment(context.Background(), "stripe", []byte(`{}`), "sig")
	assert.ErrorIs(t, err, domainErrors.ErrProviderNotFound)
}

func TestIngestPaymentWebhookMalformedPayload(t *testing.T) {
	f := newServiceFixture()
	f.payProvider.ProcessWebhookFunc = func(payload []byte) (*providers.WebhookResult, error) {
		return nil, assert.AnError
	}

	err := f.webhooks.IngestPayment(context.Background(), "razorpay", []byte(`not json`), "sig")
	require.Error(t, err)
}

func TestIngestPaymentWebhookRedeliveryIsAcknowledgedOnce(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusProcessing, "order_rzp_w2")
	f.payProvider.ProcessWebhookFunc = func(payload []byte) (*providers.WebhookResult, error) {
		return paymentWebhookResult("evt_2", "order_rzp_w2", intent.StatusCompleted), nil
	}

	require.NoError(t, f.webhooks.IngestPayment(context.Background(), "razorpay", []byte(`{}`), "sig"))
	require.NoError(t, f.webhooks.IngestPayment(context.Background(), "razorpay", []byte(`{}`), "sig"))

	stored, err := f.intents.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusCompleted, stored.Status)
	// The duplicate was acknowledged without reapplying, so exactly one
	// callback fired.
	assert.Equal(t, 1, f.notifier.PaidCount())
}

func TestIngestPaymentWebhookUnknownReferenceIsRetriedThenParked(t *testing.T) {
	f := newServiceFixture()
	// No intent holds this reference; the provider persisted it before we did.
	f.payProvider.ProcessWebhookFunc = func(payload []byte) (*providers.WebhookResult, error) {
		return paymentWebhookResult("evt_3", "order_rzp_missing", intent.StatusCompleted), nil
	}

	for i := 0; i < webhookMaxAttempts; i++ {
		err := f.webhooks.IngestPayment(context.Background(), "razorpay", []byte(`{}`), "sig")
		require.Error(t, err)
	}

	// Attempts are used up: the next redelivery parks instead of retrying.
	err := f.webhooks.IngestPayment(context.Background(), "razorpay", []byte(`{}`), "sig")
	assert.ErrorIs(t, err, domainErrors.ErrWebhookAttemptsExceeded)

	parked, err := f.webhooks.ListExhausted(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "evt_3", parked[0].EventID)
}

func TestSweepUnprocessedSettlesAfterReferenceLands(t *testing.T) {
	f := newServiceFixture()
	f.payProvider.ProcessWebhookFunc = func(payload []byte) (*providers.WebhookResult, error) {
		return paymentWebhookResult("evt_4", "order_rzp_late", intent.StatusCompleted), nil
	}

	// First delivery races the create call: the reference is not persisted
	// yet, so the event stays unprocessed.
	err := f.webhooks.IngestPayment(context.Background(), "razorpay", []byte(`{}`), "sig")
	require.Error(t, err)

	p := seedIntent(t, f, intent.StatusProcessing, "order_rzp_late")

	settled, err := f.webhooks.SweepUnprocessed(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	stored, err := f.intents.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusCompleted, stored.Status)
}

func TestIngestShippingWebhookAdvancesTracking(t *testing.T) {
	f := newServiceFixture()
	s, err := shipment.NewShipmentRequest(uuid.New(), "IN", "aramex", "standard")
	require.NoError(t, err)
	require.NoError(t, s.MarkCreated("ARX555"))
	require.NoError(t, f.shipments.Create(context.Background(), s))

	f.shipProvider.ProcessWebhookFunc = func(payload []byte) (*providers.WebhookResult, error) {
		return &providers.WebhookResult{
			EventID:        "evt_s1",
			EventType:      "shipment.in_transit",
			Kind:           webhook.KindShipping,
			Reference:      "ARX555",
			ShipmentStatus: shipment.StatusInTransit,
		}, nil
	}

	require.NoError(t, f.webhooks.IngestShipping(context.Background(), "aramex", []byte(`{}`), "sig"))

	stored, err := f.shipments.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, shipment.StatusInTransit, stored.Status)
}
