package service

import (
	"context"
	"fmt"

	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/domain/webhook"
	"github.com/omnisouq/gateway/internal/providers"
)

// WebhookResolver maps a parsed provider event onto the local aggregate it
// refers to and runs the shared lifecycle mutation.
type WebhookResolver struct {
	intents   intent.Repository
	shipments shipment.Repository
	lifecycle *Lifecycle
}

// NewWebhookResolver creates a resolver over the repositories and lifecycle.
func NewWebhookResolver(intents intent.Repository, shipments shipment.Repository, lifecycle *Lifecycle) *WebhookResolver {
	return &WebhookResolver{intents: intents, shipments: shipments, lifecycle: lifecycle}
}

// Apply locates the referenced aggregate and applies the reported status.
// An unknown reference is an error: the event stays unprocessed and is
// retried, covering the window where the reference has not been persisted yet.
func (r *WebhookResolver) Apply(ctx context.Context, providerName string, result *providers.WebhookResult) error {
	switch result.Kind {
	case webhook.KindPayment:
		p, err := r.intents.GetByProviderReference(ctx, providerName, result.Reference)
		if err != nil {
			return fmt.Errorf("resolve intent for reference %q: %w", result.Reference, err)
		}
		_, err = r.lifecycle.ApplyPayment(ctx, p, result.PaymentStatus, result.Reference, result.EventType, "webhook")
		return err
	case webhook.KindShipping:
		sh, err := r.shipments.GetByTrackingReference(ctx, providerName, result.Reference)
		if err != nil {
			return fmt.Errorf("resolve shipment for reference %q: %w", result.Reference, err)
		}
		_, err = r.lifecycle.ApplyShipment(ctx, sh, result.ShipmentStatus, result.Reference, result.EventType, "webhook")
		return err
	default:
		return fmt.Errorf("unknown webhook kind %q", result.Kind)
	}
}
