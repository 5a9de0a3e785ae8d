package service

import (
	"context"

	"github.com/google/uuid"
)

// OrderNotifier propagates settled payment outcomes to the order system.
// Both callbacks must be idempotent on the order side: the lifecycle invokes
// them at least once per settlement.
type OrderNotifier interface {
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, providerReference string) error
	MarkOrderPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) error
}
