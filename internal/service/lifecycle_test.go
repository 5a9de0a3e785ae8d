package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/service"
	"github.com/omnisouq/gateway/internal/testutil"
)

type lifecycleFixture struct {
	intents   *testutil.MockIntentRepository
	shipments *testutil.MockShipmentRepository
	notifier  *testutil.MockOrderNotifier
	lifecycle *service.Lifecycle
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		intents:   testutil.NewMockIntentRepository(),
		shipments: testutil.NewMockShipmentRepository(),
		notifier:  testutil.NewMockOrderNotifier(),
	}
	f.lifecycle = service.NewLifecycle(f.intents, f.shipments, testutil.NewMockTxManager(), f.notifier, zerolog.Nop())
	return f
}

func storedIntent(t *testing.T, f *lifecycleFixture, status intent.Status) *intent.PaymentIntent {
	t.Helper()
	p, err := intent.NewPaymentIntent(
		uuid.New(), uuid.New().String(),
		intent.Amount{ValueMinor: 25000, Currency: "QAR"},
		"QA", "dibsy",
	)
	require.NoError(t, err)

	switch status {
	case intent.StatusProcessing:
		require.NoError(t, p.MarkProcessing())
	case intent.StatusCompleted:
		ref := "dibsy_tr_1"
		require.NoError(t, p.MarkCompleted(&ref))
	case intent.StatusFailed:
		require.NoError(t, p.MarkFailed("card declined"))
	}
	require.NoError(t, f.intents.Create(context.Background(), p))
	return p
}

func TestApplyPaymentCompletesAndNotifies(t *testing.T) {
	f := newLifecycleFixture()
	p := storedIntent(t, f, intent.StatusProcessing)

	applied, err := f.lifecycle.ApplyPayment(context.Background(), p, intent.StatusCompleted, "dibsy_tr_9", "", "webhook")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, intent.StatusCompleted, p.Status)

	stored, err := f.intents.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusCompleted, stored.Status)
	require.NotNil(t, stored.ProviderReference)
	assert.Equal(t, "dibsy_tr_9", *stored.ProviderReference)

	assert.Equal(t, 1, f.notifier.PaidCount())

	events, err := f.intents.GetEvents(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "payment.completed", events[0].EventType)
	assert.Equal(t, "webhook", events[0].EventData["source"])
}

func TestApplyPaymentFailureNotifiesWithReason(t *testing.T) {
	f := newLifecycleFixture()
	p := storedIntent(t, f, intent.StatusPending)

	applied, err := f.lifecycle.ApplyPayment(context.Background(), p, intent.StatusFailed, "", "insufficient funds", "webhook")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, f.notifier.FailedCount())

	stored, err := f.intents.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "insufficient funds", *stored.LastError)
}

func TestApplyPaymentStaleReportRefiresCallback(t *testing.T) {
	f := newLifecycleFixture()
	p := storedIntent(t, f, intent.StatusCompleted)

	applied, err := f.lifecycle.ApplyPayment(context.Background(), p, intent.StatusCompleted, "dibsy_tr_1", "", "webhook")
	require.NoError(t, err)
	assert.False(t, applied)
	// The redelivery is the recovery path for a lost callback.
	assert.Equal(t, 1, f.notifier.PaidCount())
}

func TestApplyPaymentLateReportAgainstSettledIntentIsNoOp(t *testing.T) {
	f := newLifecycleFixture()
	p := storedIntent(t, f, intent.StatusFailed)

	applied, err := f.lifecycle.ApplyPayment(context.Background(), p, intent.StatusCompleted, "dibsy_tr_1", "", "webhook")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, f.notifier.PaidCount())

	stored, err := f.intents.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusFailed, stored.Status)
}

func TestApplyPaymentRejectsInvalidForwardTransition(t *testing.T) {
	f := newLifecycleFixture()
	p := storedIntent(t, f, intent.StatusPending)

	_, err := f.lifecycle.ApplyPayment(context.Background(), p, intent.StatusRefunded, "", "", "webhook")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
}

func TestApplyPaymentRetriesAfterVersionConflict(t *testing.T) {
	f := newLifecycleFixture()
	p := storedIntent(t, f, intent.StatusProcessing)

	conflicted := false
	f.intents.UpdateFunc = func(ctx context.Context, up *intent.PaymentIntent) error {
		if !conflicted {
			conflicted = true
			return domainErrors.ErrOptimisticLockFailed
		}
		f.intents.UpdateFunc = nil
		return f.intents.Update(ctx, up)
	}

	applied, err := f.lifecycle.ApplyPayment(context.Background(), p, intent.StatusCompleted, "dibsy_tr_2", "", "reconciler")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, conflicted)

	stored, err := f.intents.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusCompleted, stored.Status)
}

func TestApplyPaymentCallbackFailureBubbles(t *testing.T) {
	f := newLifecycleFixture()
	p := storedIntent(t, f, intent.StatusProcessing)

	f.notifier.MarkPaidFunc = func(ctx context.Context, orderID uuid.UUID, ref string) error {
		return assert.AnError
	}

	_, err := f.lifecycle.ApplyPayment(context.Background(), p, intent.StatusCompleted, "dibsy_tr_3", "", "webhook")
	require.Error(t, err)

	// The transition itself committed; only the callback failed, and the
	// bubbled error makes the delivery retry.
	stored, getErr := f.intents.GetByID(context.Background(), p.ID)
	require.NoError(t, getErr)
	assert.Equal(t, intent.StatusCompleted, stored.Status)
}

func storedShipment(t *testing.T, f *lifecycleFixture, status shipment.Status) *shipment.ShipmentRequest {
	t.Helper()
	s, err := shipment.NewShipmentRequest(uuid.New(), "AE", "aramex", "express")
	require.NoError(t, err)
	switch status {
	case shipment.StatusCreated:
		require.NoError(t, s.MarkCreated("ARX123"))
	case shipment.StatusDelivered:
		require.NoError(t, s.MarkCreated("ARX123"))
		require.NoError(t, s.TransitionTo(shipment.StatusDelivered))
	}
	require.NoError(t, f.shipments.Create(context.Background(), s))
	return s
}

func TestApplyShipmentRecordsTrackingReference(t *testing.T) {
	f := newLifecycleFixture()
	s := storedShipment(t, f, shipment.StatusPending)

	applied, err := f.lifecycle.ApplyShipment(context.Background(), s, shipment.StatusCreated, "ARX999", "", "create")
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := f.shipments.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, shipment.StatusCreated, stored.Status)
	require.NotNil(t, stored.TrackingReference)
	assert.Equal(t, "ARX999", *stored.TrackingReference)
}

func TestApplyShipmentStaleReportIsNoOp(t *testing.T) {
	f := newLifecycleFixture()
	s := storedShipment(t, f, shipment.StatusCreated)

	applied, err := f.lifecycle.ApplyShipment(context.Background(), s, shipment.StatusCreated, "ARX123", "", "webhook")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestApplyShipmentLateReportAgainstDeliveredIsNoOp(t *testing.T) {
	f := newLifecycleFixture()
	s := storedShipment(t, f, shipment.StatusDelivered)

	applied, err := f.lifecycle.ApplyShipment(context.Background(), s, shipment.StatusInTransit, "ARX123", "", "webhook")
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := f.shipments.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, shipment.StatusDelivered, stored.Status)
}
