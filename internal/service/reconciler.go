package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/infrastructure/observability"
	"github.com/omnisouq/gateway/pkg/retry"
)

// Reconciler sweeps intents and shipments that have sat in a non-terminal
// state past the grace window and asks the provider for the authoritative
// outcome. It converges on the same lifecycle mutation as the webhook
// pipeline, so a reconciled transition and a webhook-driven one are
// indistinguishable downstream.
type Reconciler struct {
	intents   intent.Repository
	shipments shipment.Repository
	payments  *PaymentService
	shipping  *ShippingService
	metrics   *observability.Metrics
	grace     time.Duration
	batchSize int
	retryCfg  retry.Config
	logger    zerolog.Logger
}

// NewReconciler creates a reconciler. grace is how long an unsettled record
// is left alone before it is considered stuck; webhooks arriving inside the
// window settle most records without any polling.
func NewReconciler(
	intents intent.Repository,
	shipments shipment.Repository,
	payments *PaymentService,
	shipping *ShippingService,
	metrics *observability.Metrics,
	grace time.Duration,
	batchSize int,
	logger zerolog.Logger,
) *Reconciler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Reconciler{
		intents:   intents,
		shipments: shipments,
		payments:  payments,
		shipping:  shipping,
		metrics:   metrics,
		grace:     grace,
		batchSize: batchSize,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger,
	}
}

// ReconcilePayments runs one payment sweep and returns how many intents were
// transitioned.
func (r *Reconciler) ReconcilePayments(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.grace)
	stuck, err := r.intents.ListStuck(ctx, cutoff, r.batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, p := range stuck {
		applied, err := retry.DoWithResult(ctx, r.retryCfg, func() (bool, error) {
			return r.payments.SyncFromProvider(ctx, p)
		})
		if err != nil {
			r.metrics.ReconcilerOutcomes.WithLabelValues("payment", "error").Inc()
			r.logger.Warn().Err(err).
				Str("intent_id", p.ID.String()).
				Str("provider", p.Provider).
				Msg("payment reconciliation failed, will retry next sweep")
			continue
		}
		if applied {
			settled++
			r.metrics.ReconcilerOutcomes.WithLabelValues("payment", "settled").Inc()
		} else {
			r.metrics.ReconcilerOutcomes.WithLabelValues("payment", "unchanged").Inc()
		}
	}

	if len(stuck) > 0 {
		r.logger.Info().
			Int("stuck", len(stuck)).
			Int("settled", settled).
			Msg("payment reconciliation sweep finished")
	}
	return settled, nil
}

// ReconcileShipments runs one shipment sweep.
func (r *Reconciler) ReconcileShipments(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.grace)
	stuck, err := r.shipments.ListStuck(ctx, cutoff, r.batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, sh := range stuck {
		applied, err := retry.DoWithResult(ctx, r.retryCfg, func() (bool, error) {
			return r.shipping.syncFromCarrier(ctx, sh)
		})
		if err != nil {
			r.metrics.ReconcilerOutcomes.WithLabelValues("shipment", "error").Inc()
			r.logger.Warn().Err(err).
				Str("shipment_id", sh.ID.String()).
				Str("provider", sh.Provider).
				Msg("shipment reconciliation failed, will retry next sweep")
			continue
		}
		if applied {
			settled++
			r.metrics.ReconcilerOutcomes.WithLabelValues("shipment", "settled").Inc()
		} else {
			r.metrics.ReconcilerOutcomes.WithLabelValues("shipment", "unchanged").Inc()
		}
	}
	return settled, nil
}

// Run sweeps on the given interval until the context is cancelled. Intended
// for the worker binary.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReconcilePayments(ctx); err != nil {
				r.logger.Error().Err(err).Msg("payment reconciliation sweep errored")
			}
			if _, err := r.ReconcileShipments(ctx); err != nil {
				r.logger.Error().Err(err).Msg("shipment reconciliation sweep errored")
			}
		}
	}
}
