package idempotency_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/idempotency"
	"github.com/omnisouq/gateway/internal/testutil"
)

func freshIntent(t *testing.T, key string) func() (*intent.PaymentIntent, error) {
	t.Helper()
	return func() (*intent.PaymentIntent, error) {
		return intent.NewPaymentIntent(
			uuid.New(),
			key,
			intent.Amount{ValueMinor: 50000, Currency: "INR"},
			"IN",
			"razorpay",
		)
	}
}

func TestGuardRunsOperationOnce(t *testing.T) {
	repo := testutil.NewMockIntentRepository()
	guard := idempotency.NewGuard(repo, testutil.NewMockLocker())

	calls := 0
	op := func(ctx context.Context, reserved *intent.PaymentIntent) error {
		calls++
		return nil
	}

	first, err := guard.Run(context.Background(), "key-1", freshIntent(t, "key-1"), op)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := guard.Run(context.Background(), "key-1", freshIntent(t, "key-1"), op)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Intent.ID, second.Intent.ID)
	assert.Equal(t, 1, calls)
}

func TestGuardConcurrentSameKeyCreatesOneIntent(t *testing.T) {
	repo := testutil.NewMockIntentRepository()
	guard := idempotency.NewGuard(repo, testutil.NewMockLocker())

	var opCalls sync.Map
	var opCount int
	var countMu sync.Mutex
	op := func(ctx context.Context, reserved *intent.PaymentIntent) error {
		countMu.Lock()
		opCount++
		countMu.Unlock()
		opCalls.Store(reserved.ID, true)
		return nil
	}

	const workers = 10
	results := make([]*idempotency.Result, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = guard.Run(context.Background(), "key-race", freshIntent(t, "key-race"), op)
		}(i)
	}
	wg.Wait()

	var winnerID uuid.UUID
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		if winnerID == uuid.Nil {
			winnerID = results[i].Intent.ID
		}
		assert.Equal(t, winnerID, results[i].Intent.ID, "all callers must observe the same intent")
	}

	countMu.Lock()
	defer countMu.Unlock()
	assert.Equal(t, 1, opCount, "the provider operation must run exactly once")
}

func TestGuardReplaysCompletedIntentWithoutOperation(t *testing.T) {
	repo := testutil.NewMockIntentRepository()
	guard := idempotency.NewGuard(repo, testutil.NewMockLocker())

	p, err := freshIntent(t, "key-done")()
	require.NoError(t, err)
	ref := "pay_abc"
	require.NoError(t, p.MarkCompleted(&ref))
	require.NoError(t, repo.Create(context.Background(), p))

	res, err := guard.Run(context.Background(), "key-done", freshIntent(t, "key-done"), func(ctx context.Context, reserved *intent.PaymentIntent) error {
		t.Fatal("operation must not run for a settled key")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, intent.StatusCompleted, res.Intent.Status)
}

func TestGuardRejectionMarksIntentFailed(t *testing.T) {
	repo := testutil.NewMockIntentRepository()
	guard := idempotency.NewGuard(repo, testutil.NewMockLocker())

	rejection := domainErrors.NewProviderError("razorpay", "amount exceeds limit", nil)
	_, err := guard.Run(context.Background(), "key-rej", freshIntent(t, "key-rej"), func(ctx context.Context, reserved *intent.PaymentIntent) error {
		return rejection
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrProviderRejected)

	stored, err := repo.GetByIdempotencyKey(context.Background(), "key-rej")
	require.NoError(t, err)
	assert.Equal(t, intent.StatusFailed, stored.Status)
	require.NotNil(t, stored.LastError)
}

func TestGuardTimeoutLeavesOutcomeUnknown(t *testing.T) {
	repo := testutil.NewMockIntentRepository()
	guard := idempotency.NewGuard(repo, testutil.NewMockLocker())

	_, err := guard.Run(context.Background(), "key-to", freshIntent(t, "key-to"), func(ctx context.Context, reserved *intent.PaymentIntent) error {
		return domainErrors.NewTimeoutError("razorpay", 15000)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrProviderTimeout)

	stored, err := repo.GetByIdempotencyKey(context.Background(), "key-to")
	require.NoError(t, err)
	assert.Equal(t, intent.StatusPending, stored.Status, "a timeout must never settle the intent as failed")
}

func TestGuardFailedKeyAllowsRetryOnSameRow(t *testing.T) {
	repo := testutil.NewMockIntentRepository()
	guard := idempotency.NewGuard(repo, testutil.NewMockLocker())

	_, err := guard.Run(context.Background(), "key-retry", freshIntent(t, "key-retry"), func(ctx context.Context, reserved *intent.PaymentIntent) error {
		return domainErrors.NewProviderError("razorpay", "insufficient funds", nil)
	})
	require.Error(t, err)

	res, err := guard.Run(context.Background(), "key-retry", freshIntent(t, "key-retry"), func(ctx context.Context, reserved *intent.PaymentIntent) error {
		assert.Equal(t, intent.StatusPending, reserved.Status)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	all, err := repo.List(context.Background(), intent.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "retrying a failed key must not create a second intent")
}

func TestGuardPropagatesLockFailure(t *testing.T) {
	repo := testutil.NewMockIntentRepository()
	locker := testutil.NewMockLocker()
	locker.WithLockFunc = func(ctx context.Context, key string, fn func(ctx context.Context) error) error {
		return domainErrors.ErrLockAcquisitionFailed
	}
	guard := idempotency.NewGuard(repo, locker)

	_, err := guard.Run(context.Background(), "key-lock", freshIntent(t, "key-lock"), func(ctx context.Context, reserved *intent.PaymentIntent) error {
		t.Fatal("operation must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, domainErrors.ErrLockAcquisitionFailed)
}
