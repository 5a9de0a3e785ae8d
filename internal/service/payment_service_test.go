package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/region"
	"github.com/omnisouq/gateway/internal/idempotency"
	"github.com/omnisouq/gateway/internal/infrastructure/observability"
	"github.com/omnisouq/gateway/internal/normalizer"
	"github.com/omnisouq/gateway/internal/providers"
	"github.com/omnisouq/gateway/internal/service"
	"github.com/omnisouq/gateway/internal/testutil"
)

// serviceFixture wires the full service stack over in-memory mocks. The
// region table binds IN to razorpay/aramex and keeps OM configured but
// inactive.
type serviceFixture struct {
	intents      *testutil.MockIntentRepository
	shipments    *testutil.MockShipmentRepository
	events       *testutil.MockWebhookRepository
	notifier     *testutil.MockOrderNotifier
	payProvider  *providers.MockPaymentProvider
	shipProvider *providers.MockShippingProvider
	lifecycle    *service.Lifecycle
	payments     *service.PaymentService
	shipping     *service.ShippingService
	webhooks     *service.WebhookService
	metrics      *observability.Metrics
}

const webhookMaxAttempts = 3

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		intents:      testutil.NewMockIntentRepository(),
		shipments:    testutil.NewMockShipmentRepository(),
		events:       testutil.NewMockWebhookRepository(),
		notifier:     testutil.NewMockOrderNotifier(),
		payProvider:  providers.NewMockPaymentProvider("razorpay"),
		shipProvider: providers.NewMockShippingProvider("aramex"),
	}

	regions := region.NewRegistry([]region.Config{
		{Code: "IN", Currency: "INR", PaymentProvider: "razorpay", ShippingProvider: "aramex", IsActive: true},
		{Code: "OM", Currency: "OMR", PaymentProvider: "oman_net", ShippingProvider: "aramex", IsActive: false},
	})
	factory := providers.NewFactory()
	factory.RegisterPayment(f.payProvider)
	factory.RegisterShipping(f.shipProvider)
	router := providers.NewRouter(regions, factory)

	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	f.metrics = metrics
	guard := idempotency.NewGuard(f.intents, testutil.NewMockLocker())
	f.lifecycle = service.NewLifecycle(f.intents, f.shipments, testutil.NewMockTxManager(), f.notifier, zerolog.Nop())

	f.payments = service.NewPaymentService(
		f.intents, router, guard, f.lifecycle, metrics, "http://gw.local", zerolog.Nop(),
	)
	f.shipping = service.NewShippingService(f.shipments, router, f.lifecycle, metrics, zerolog.Nop())
	resolver := service.NewWebhookResolver(f.intents, f.shipments, f.lifecycle)
	f.webhooks = service.NewWebhookService(f.events, router, resolver, metrics, webhookMaxAttempts, zerolog.Nop())

	return f
}

func validPaymentInput() normalizer.PaymentInput {
	addr := normalizer.Address{Line1: "12 MG Road", City: "Bengaluru", Country: "IN"}
	return normalizer.PaymentInput{
		OrderID:        uuid.New().String(),
		IdempotencyKey: uuid.New().String(),
		AmountMinor:    20000,
		Currency:       "inr",
		Region:         "in",
		Customer: normalizer.Customer{
			ID:    uuid.New().String(),
			Email: "buyer@example.com",
			Name:  "A Buyer",
		},
		BillingAddress:  addr,
		ShippingAddress: addr,
		Items: []normalizer.LineItem{
			{ID: "sku-1", Name: "Widget", Quantity: 2, UnitPriceMinor: 10000, TotalPriceMinor: 20000},
		},
	}
}

// seedIntent stores an intent directly, bypassing the guard, for query and
// settlement tests.
func seedIntent(t *testing.T, f *serviceFixture, status intent.Status, providerRef string) *intent.PaymentIntent {
	t.Helper()
	p, err := intent.NewPaymentIntent(
		uuid.New(), uuid.New().String(),
		intent.Amount{ValueMinor: 20000, Currency: "INR"},
		"IN", "razorpay",
	)
	require.NoError(t, err)
	if providerRef != "" {
		p.SetProviderReference(providerRef)
	}
	switch status {
	case intent.StatusProcessing:
		require.NoError(t, p.MarkProcessing())
	case intent.StatusCompleted:
		require.NoError(t, p.MarkCompleted(nil))
	case intent.StatusFailed:
		require.NoError(t, p.MarkFailed("seeded failure"))
	}
	require.NoError(t, f.intents.Create(context.Background(), p))
	return p
}

func TestCreatePaymentRoutesByRegion(t *testing.T) {
	f := newServiceFixture()

	var gotCallback string
	f.payProvider.CreatePaymentFunc = func(ctx context.Context, req providers.CreateRequest) (*providers.PaymentResponse, error) {
		gotCallback = req.CallbackURL
		return &providers.PaymentResponse{
			Provider:    "razorpay",
			Reference:   "order_rzp_1",
			Status:      intent.StatusPending,
			AmountMinor: req.AmountMinor,
			Currency:    req.Currency,
		}, nil
	}

	resp, err := f.payments.CreatePayment(context.Background(), validPaymentInput())
	require.NoError(t, err)
	assert.False(t, resp.Replayed)
	assert.Equal(t, "razorpay", resp.Intent.Provider)
	assert.Equal(t, "IN", resp.Intent.Region)
	require.NotNil(t, resp.Intent.ProviderReference)
	assert.Equal(t, "order_rzp_1", *resp.Intent.ProviderReference)
	assert.Equal(t, "http://gw.local/webhooks/payments/razorpay", gotCallback)
	assert.EqualValues(t, 1, f.payProvider.CreateCalls.Load())
}

func TestCreatePaymentReplaysIdempotentRetry(t *testing.T) {
	f := newServiceFixture()
	in := validPaymentInput()

	first, err := f.payments.CreatePayment(context.Background(), in)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := f.payments.CreatePayment(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Intent.ID, second.Intent.ID)
	assert.EqualValues(t, 1, f.payProvider.CreateCalls.Load())
}

func TestCreatePaymentRejectsCurrencyRegionMismatch(t *testing.T) {
	f := newServiceFixture()
	in := validPaymentInput()
	in.Currency = "USD"

	_, err := f.payments.CreatePayment(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
	assert.EqualValues(t, 0, f.payProvider.CreateCalls.Load())
}

func TestCreatePaymentFailsClosedOnUnknownRegion(t *testing.T) {
	f := newServiceFixture()
	in := validPaymentInput()
	in.Region = "ZZ"

	_, err := f.payments.CreatePayment(context.Background(), in)
	assert.ErrorIs(t, err, domainErrors.ErrRegionNotFound)
}

func TestCreatePaymentFailsClosedOnInactiveRegion(t *testing.T) {
	f := newServiceFixture()
	in := validPaymentInput()
	in.Region = "OM"
	in.Currency = "OMR"

	_, err := f.payments.CreatePayment(context.Background(), in)
	assert.ErrorIs(t, err, domainErrors.ErrRegionInactive)
}

func TestCreatePaymentRejectionSettlesIntentFailed(t *testing.T) {
	f := newServiceFixture()
	in := validPaymentInput()
	f.payProvider.CreatePaymentFunc = func(ctx context.Context, req providers.CreateRequest) (*providers.PaymentResponse, error) {
		return nil, fmt.Errorf("card declined: %w", domainErrors.ErrProviderRejected)
	}

	_, err := f.payments.CreatePayment(context.Background(), in)
	require.Error(t, err)

	stored, err := f.intents.GetByIdempotencyKey(context.Background(), in.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusFailed, stored.Status)
}

func TestCreatePaymentTimeoutLeavesOutcomeUnknown(t *testing.T) {
	f := newServiceFixture()
	in := validPaymentInput()
	f.payProvider.CreatePaymentFunc = func(ctx context.Context, req providers.CreateRequest) (*providers.PaymentResponse, error) {
		return nil, fmt.Errorf("post orders: %w", domainErrors.ErrProviderTimeout)
	}

	_, err := f.payments.CreatePayment(context.Background(), in)
	require.Error(t, err)

	// A timeout must never settle the intent locally: the charge may have
	// gone through and only the reconciler can decide.
	stored, err := f.intents.GetByIdempotencyKey(context.Background(), in.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusPending, stored.Status)
}

func TestCreatePaymentRejectsAmountEchoMismatch(t *testing.T) {
	f := newServiceFixture()
	in := validPaymentInput()
	f.payProvider.CreatePaymentFunc = func(ctx context.Context, req providers.CreateRequest) (*providers.PaymentResponse, error) {
		return &providers.PaymentResponse{
			Provider:    "razorpay",
			Reference:   "order_rzp_2",
			Status:      intent.StatusPending,
			AmountMinor: req.AmountMinor + 1,
			Currency:    req.Currency,
		}, nil
	}

	_, err := f.payments.CreatePayment(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount mismatch")
}

func TestVerifyPaymentSettlesThroughLifecycle(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusProcessing, "order_rzp_3")

	got, err := f.payments.VerifyPayment(context.Background(), p.ID, "sig-material")
	require.NoError(t, err)
	assert.Equal(t, intent.StatusCompleted, got.Status)
	assert.Equal(t, 1, f.notifier.PaidCount())
	assert.EqualValues(t, 1, f.payProvider.VerifyCalls.Load())
}

func TestVerifyPaymentRequiresProviderReference(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusPending, "")

	_, err := f.payments.VerifyPayment(context.Background(), p.ID, "sig-material")
	require.Error(t, err)
	assert.EqualValues(t, 0, f.payProvider.VerifyCalls.Load())
}

func TestRefundPaymentOnlyFromCompleted(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusProcessing, "order_rzp_4")

	_, err := f.payments.RefundPayment(context.Background(), p.ID, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
	assert.EqualValues(t, 0, f.payProvider.RefundCalls.Load())
}

func TestRefundPaymentRejectsOverRefund(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusCompleted, "order_rzp_5")

	_, err := f.payments.RefundPayment(context.Background(), p.ID, p.Amount.ValueMinor+1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
}

func TestRefundPaymentTransitionsToRefunded(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusCompleted, "order_rzp_6")

	got, err := f.payments.RefundPayment(context.Background(), p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusRefunded, got.Status)
	assert.EqualValues(t, 1, f.payProvider.RefundCalls.Load())
}

func TestSyncFromProviderAppliesAuthoritativeStatus(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusProcessing, "order_rzp_7")
	f.payProvider.GetPaymentStatusFunc = func(ctx context.Context, reference string) (*providers.PaymentResponse, error) {
		return &providers.PaymentResponse{Provider: "razorpay", Reference: reference, Status: intent.StatusCompleted}, nil
	}

	applied, err := f.payments.SyncFromProvider(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, intent.StatusCompleted, p.Status)
	assert.Equal(t, 1, f.notifier.PaidCount())
}

func TestSyncFromProviderUnchangedStatusIsNoOp(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusProcessing, "order_rzp_8")
	f.payProvider.GetPaymentStatusFunc = func(ctx context.Context, reference string) (*providers.PaymentResponse, error) {
		return &providers.PaymentResponse{Provider: "razorpay", Reference: reference, Status: intent.StatusProcessing}, nil
	}

	applied, err := f.payments.SyncFromProvider(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestSyncFromProviderFailsIntentWithoutReference(t *testing.T) {
	f := newServiceFixture()
	p := seedIntent(t, f, intent.StatusPending, "")

	applied, err := f.payments.SyncFromProvider(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, intent.StatusFailed, p.Status)
	assert.Equal(t, 1, f.notifier.FailedCount())
	assert.EqualValues(t, 0, f.payProvider.StatusCalls.Load())
}
