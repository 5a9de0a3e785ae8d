package intent

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
)

func newTestIntent(t *testing.T) *PaymentIntent {
	t.Helper()
	p, err := NewPaymentIntent(
		uuid.New(), uuid.New().String(),
		Amount{ValueMinor: 10000, Currency: "SAR"},
		"SA", "moyasar",
	)
	require.NoError(t, err)
	return p
}

func TestNewPaymentIntentValidation(t *testing.T) {
	_, err := NewPaymentIntent(uuid.New(), "", Amount{ValueMinor: 100, Currency: "SAR"}, "SA", "moyasar")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)

	_, err = NewPaymentIntent(uuid.New(), "k", Amount{ValueMinor: 0, Currency: "SAR"}, "SA", "moyasar")
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)

	_, err = NewPaymentIntent(uuid.New(), "k", Amount{ValueMinor: 100, Currency: "RIYAL"}, "SA", "moyasar")
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)

	_, err = NewPaymentIntent(uuid.New(), "k", Amount{ValueMinor: 100, Currency: "SAR"}, "SA", "")
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
}

func TestStatusGraphIsForwardOnly(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"pending direct to completed", StatusPending, StatusCompleted, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to refunded", StatusPending, StatusRefunded, false},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"processing back to pending", StatusProcessing, StatusPending, false},
		{"completed to refunded", StatusCompleted, StatusRefunded, true},
		{"completed back to processing", StatusCompleted, StatusProcessing, false},
		{"failed to completed", StatusFailed, StatusCompleted, false},
		{"refunded to anything", StatusRefunded, StatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestIntent(t)
			p.Status = tc.from
			assert.Equal(t, tc.allowed, p.CanTransitionTo(tc.to))
		})
	}
}

func TestTransitionToSameStatusIsStale(t *testing.T) {
	p := newTestIntent(t)
	err := p.TransitionTo(StatusPending)
	assert.ErrorIs(t, err, domainErrors.ErrStaleTransition)
}

func TestMarkCompletedRecordsReferenceAndTimestamp(t *testing.T) {
	p := newTestIntent(t)
	require.NoError(t, p.MarkProcessing())

	ref := "moy_pay_1"
	require.NoError(t, p.MarkCompleted(&ref))
	assert.Equal(t, StatusCompleted, p.Status)
	require.NotNil(t, p.ProviderReference)
	assert.Equal(t, ref, *p.ProviderReference)
	assert.NotNil(t, p.CompletedAt)
}

func TestMarkFailedRecordsReason(t *testing.T) {
	p := newTestIntent(t)
	require.NoError(t, p.MarkFailed("3ds failed"))
	require.NotNil(t, p.LastError)
	assert.Equal(t, "3ds failed", *p.LastError)
	assert.True(t, p.IsTerminal())
}

func TestResetForRetryReopensFailedIntent(t *testing.T) {
	p := newTestIntent(t)
	p.SetProviderReference("moy_pay_2")
	require.NoError(t, p.MarkFailed("declined"))

	p.ResetForRetry()
	assert.Equal(t, StatusPending, p.Status)
	assert.Nil(t, p.ProviderReference)
	assert.Nil(t, p.LastError)
	assert.Nil(t, p.CompletedAt)
	assert.False(t, p.IsTerminal())
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "105.50 QAR", Amount{ValueMinor: 10550, Currency: "QAR"}.String())
	assert.Equal(t, "0.05 INR", Amount{ValueMinor: 5, Currency: "INR"}.String())
}
