package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
)

// KeyLocker serializes per-key critical sections across instances. It backs
// the idempotency guard: concurrent creates for the same key queue up here
// and the losers observe the winner's persisted result.
type KeyLocker struct {
	client     *redis.Client
	ttl        time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewKeyLocker creates a locker. The TTL bounds how long a crashed holder can
// block a key; retries and delay bound how long a waiter queues.
func NewKeyLocker(client *redis.Client, ttl time.Duration, maxRetries int, retryDelay time.Duration) *KeyLocker {
	if maxRetries <= 0 {
		maxRetries = 20
	}
	if retryDelay <= 0 {
		retryDelay = 250 * time.Millisecond
	}
	return &KeyLocker{client: client, ttl: ttl, maxRetries: maxRetries, retryDelay: retryDelay}
}

// WithLock runs fn while holding the lock for key.
func (k *KeyLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock := NewDistributedLock(k.client, key, k.ttl)
	if err := lock.AcquireWithRetry(ctx, k.maxRetries, k.retryDelay); err != nil {
		return domainErrors.NewDomainError(
			"lock_unavailable",
			"could not acquire lock for "+key,
			domainErrors.ErrLockAcquisitionFailed,
		)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}()

	return fn(ctx)
}
