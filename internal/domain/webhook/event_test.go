package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventRequiresIdentity(t *testing.T) {
	_, err := NewEvent("", KindPayment, "evt_1", "payment.captured", nil, "")
	assert.Error(t, err)

	_, err = NewEvent("razorpay", KindPayment, "", "payment.captured", nil, "")
	assert.Error(t, err)
}

func TestEventAttemptBookkeeping(t *testing.T) {
	e, err := NewEvent("razorpay", KindPayment, "evt_1", "payment.captured", []byte(`{}`), "sig")
	require.NoError(t, err)

	assert.False(t, e.Exhausted(3))
	e.RecordFailure("intent not found")
	e.RecordFailure("intent not found")
	assert.False(t, e.Exhausted(3))
	e.RecordFailure("intent not found")
	assert.True(t, e.Exhausted(3))
	require.NotNil(t, e.LastError)

	// A processed event is settled regardless of attempts.
	e.MarkProcessed()
	assert.False(t, e.Exhausted(3))
}
