// Package idempotency enforces exactly-once payment creation per idempotency
// key. The reservation is the payment intent row itself: the repository's
// insert-if-absent unique key is the atomic primitive, and a per-key
// distributed lock makes concurrent losers wait for the winner's result
// instead of reaching the provider a second time.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
)

// Locker serializes execution per key across instances.
type Locker interface {
	// WithLock runs fn while holding the lock for key, retrying acquisition
	// within the configured bounds. Returns ErrLockAcquisitionFailed when the
	// lock cannot be obtained.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Operation performs the guarded provider call against the reserved intent.
// It is responsible for persisting any mutation it makes.
type Operation func(ctx context.Context, reserved *intent.PaymentIntent) error

// Guard wraps provider create operations with key-based deduplication.
type Guard struct {
	intents intent.Repository
	locker  Locker
}

// NewGuard creates an idempotency guard.
func NewGuard(intents intent.Repository, locker Locker) *Guard {
	return &Guard{intents: intents, locker: locker}
}

// Result carries the guarded outcome.
type Result struct {
	Intent *intent.PaymentIntent
	// Replayed is true when a prior attempt's result was returned without
	// invoking the operation.
	Replayed bool
}

// Run executes op at most once per key. A prior non-failed intent is replayed
// as-is. A failed intent releases its reservation: the same row is reset to a
// fresh pending attempt and op runs again. The intent built by fresh is only
// used when no row exists yet.
func (g *Guard) Run(ctx context.Context, key string, fresh func() (*intent.PaymentIntent, error), op Operation) (*Result, error) {
	// Fast path outside the lock: a settled prior attempt needs no
	// serialization.
	existing, err := g.intents.GetByIdempotencyKey(ctx, key)
	if err == nil && existing != nil && existing.Status != intent.StatusFailed {
		return &Result{Intent: existing, Replayed: true}, nil
	}
	if err != nil && !errors.Is(err, domainErrors.ErrIntentNotFound) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	var result *Result
	lockErr := g.locker.WithLock(ctx, "idem:"+key, func(ctx context.Context) error {
		reserved, replayed, err := g.reserve(ctx, key, fresh)
		if err != nil {
			return err
		}
		if replayed {
			result = &Result{Intent: reserved, Replayed: true}
			return nil
		}

		if err := op(ctx, reserved); err != nil {
			g.settleFailure(ctx, reserved, err)
			return err
		}

		result = &Result{Intent: reserved}
		return nil
	})
	if lockErr != nil {
		return nil, lockErr
	}
	return result, nil
}

// reserve claims the key. Exactly one caller wins the insert; losers observe
// the winner's row.
func (g *Guard) reserve(ctx context.Context, key string, fresh func() (*intent.PaymentIntent, error)) (*intent.PaymentIntent, bool, error) {
	existing, err := g.intents.GetByIdempotencyKey(ctx, key)
	if err != nil && !errors.Is(err, domainErrors.ErrIntentNotFound) {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	if existing != nil {
		if existing.Status != intent.StatusFailed {
			return existing, true, nil
		}
		// A failed attempt released its reservation: reuse the row for a new
		// attempt so the one-intent-per-key invariant holds across retries.
		existing.ResetForRetry()
		if err := g.intents.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("reset failed intent: %w", err)
		}
		return existing, false, nil
	}

	reserved, err := fresh()
	if err != nil {
		return nil, false, err
	}
	if err := g.intents.Create(ctx, reserved); err != nil {
		if errors.Is(err, domainErrors.ErrDuplicateIdempotencyKey) {
			// Lost a race outside the lock scope; read the winner's row.
			winner, readErr := g.intents.GetByIdempotencyKey(ctx, key)
			if readErr != nil {
				return nil, false, fmt.Errorf("read winning intent: %w", readErr)
			}
			return winner, true, nil
		}
		return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return reserved, false, nil
}

// settleFailure records a terminal provider rejection against the reservation.
// Timeouts are left untouched: the outcome is unknown and only the
// reconciler may decide it.
func (g *Guard) settleFailure(ctx context.Context, reserved *intent.PaymentIntent, opErr error) {
	if errors.Is(opErr, domainErrors.ErrProviderTimeout) {
		return
	}
	if reserved.Status != intent.StatusPending && reserved.Status != intent.StatusProcessing {
		return
	}
	if err := reserved.MarkFailed(opErr.Error()); err != nil {
		return
	}
	// Best effort; the reconciler sweep covers a lost update here.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = g.intents.Update(ctx, reserved)
}
