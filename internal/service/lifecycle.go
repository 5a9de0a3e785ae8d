package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/shipment"
)

// Lifecycle is the single mutation routine for intent and shipment status.
// Every writer, whether the webhook pipeline, the reconciler or the verify
// endpoint, converges here so the transition rules and order callbacks cannot
// drift apart between paths.
type Lifecycle struct {
	intents   intent.Repository
	shipments shipment.Repository
	txManager TransactionManager
	notifier  OrderNotifier
	logger    zerolog.Logger
}

// NewLifecycle creates the shared status mutation routine.
func NewLifecycle(
	intents intent.Repository,
	shipments shipment.Repository,
	txManager TransactionManager,
	notifier OrderNotifier,
	logger zerolog.Logger,
) *Lifecycle {
	return &Lifecycle{
		intents:   intents,
		shipments: shipments,
		txManager: txManager,
		notifier:  notifier,
		logger:    logger,
	}
}

// maxApplyAttempts bounds re-reads after an optimistic lock conflict.
const maxApplyAttempts = 3

// ApplyPayment drives p toward target and persists the result. It returns
// whether the transition was applied. A stale report (already in target) and
// a late report against a terminal intent are both no-ops, not errors: the
// caller may safely acknowledge the delivery. Order callbacks fire for every
// settled outcome, including replays of one, so a lost callback is recovered
// by the provider's redelivery.
func (l *Lifecycle) ApplyPayment(ctx context.Context, p *intent.PaymentIntent, target intent.Status, providerRef, detail, source string) (bool, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		applied, err := l.tryApplyPayment(ctx, p, target, providerRef, detail, source)
		if err != nil && errors.Is(err, domainErrors.ErrOptimisticLockFailed) {
			fresh, readErr := l.intents.GetByID(ctx, p.ID)
			if readErr != nil {
				return false, fmt.Errorf("reload intent after conflict: %w", readErr)
			}
			*p = *fresh
			continue
		}
		return applied, err
	}
	return false, domainErrors.ErrOptimisticLockFailed
}

func (l *Lifecycle) tryApplyPayment(ctx context.Context, p *intent.PaymentIntent, target intent.Status, providerRef, detail, source string) (bool, error) {
	if p.Status == target {
		// Redelivery of an already-applied report. Re-fire the callback so an
		// earlier notification failure heals.
		return false, l.notifyPayment(ctx, p, detail)
	}
	if !p.CanTransitionTo(target) {
		if p.IsTerminal() {
			l.logger.Warn().
				Str("intent_id", p.ID.String()).
				Str("status", string(p.Status)).
				Str("target", string(target)).
				Str("source", source).
				Msg("skipping late status report against settled intent")
			return false, nil
		}
		return false, domainErrors.NewDomainError(
			"invalid_transition",
			fmt.Sprintf("cannot transition from %s to %s", p.Status, target),
			domainErrors.ErrInvalidStateTransition,
		)
	}

	switch target {
	case intent.StatusProcessing:
		if err := p.MarkProcessing(); err != nil {
			return false, err
		}
		if providerRef != "" {
			p.SetProviderReference(providerRef)
		}
	case intent.StatusCompleted:
		var ref *string
		if providerRef != "" {
			ref = &providerRef
		}
		if err := p.MarkCompleted(ref); err != nil {
			return false, err
		}
	case intent.StatusFailed:
		if detail == "" {
			detail = "reported failed by provider"
		}
		if err := p.MarkFailed(detail); err != nil {
			return false, err
		}
	case intent.StatusCancelled:
		if err := p.MarkCancelled(); err != nil {
			return false, err
		}
	case intent.StatusRefunded:
		if err := p.MarkRefunded(); err != nil {
			return false, err
		}
	default:
		return false, domainErrors.NewValidationError("status", "unknown target status "+string(target))
	}

	err := l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := l.intents.Update(txCtx, p); err != nil {
			return err
		}
		return l.intents.AddEvent(txCtx, &intent.Event{
			ID:        uuid.New(),
			IntentID:  p.ID,
			EventType: "payment." + string(target),
			EventData: map[string]any{
				"source":             source,
				"provider_reference": providerRef,
				"detail":             detail,
				"amount_minor":       p.Amount.ValueMinor,
				"currency":           p.Amount.Currency,
			},
		})
	})
	if err != nil {
		return false, err
	}

	l.logger.Info().
		Str("intent_id", p.ID.String()).
		Str("order_id", p.OrderID.String()).
		Str("status", string(target)).
		Str("source", source).
		Msg("payment intent transitioned")

	return true, l.notifyPayment(ctx, p, detail)
}

// notifyPayment propagates settled outcomes to the order system. Errors
// bubble up so the triggering delivery is retried; the callbacks are
// idempotent on the order side.
func (l *Lifecycle) notifyPayment(ctx context.Context, p *intent.PaymentIntent, detail string) error {
	switch p.Status {
	case intent.StatusCompleted:
		ref := ""
		if p.ProviderReference != nil {
			ref = *p.ProviderReference
		}
		if err := l.notifier.MarkOrderPaid(ctx, p.OrderID, ref); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
	case intent.StatusFailed:
		reason := detail
		if reason == "" && p.LastError != nil {
			reason = *p.LastError
		}
		if err := l.notifier.MarkOrderPaymentFailed(ctx, p.OrderID, reason); err != nil {
			return fmt.Errorf("mark order payment failed: %w", err)
		}
	}
	return nil
}

// ApplyShipment drives a shipment toward target with the same stale and
// late-report semantics as ApplyPayment.
func (l *Lifecycle) ApplyShipment(ctx context.Context, s *shipment.ShipmentRequest, target shipment.Status, trackingRef, detail, source string) (bool, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		applied, err := l.tryApplyShipment(ctx, s, target, trackingRef, detail, source)
		if err != nil && errors.Is(err, domainErrors.ErrOptimisticLockFailed) {
			fresh, readErr := l.shipments.GetByID(ctx, s.ID)
			if readErr != nil {
				return false, fmt.Errorf("reload shipment after conflict: %w", readErr)
			}
			*s = *fresh
			continue
		}
		return applied, err
	}
	return false, domainErrors.ErrOptimisticLockFailed
}

func (l *Lifecycle) tryApplyShipment(ctx context.Context, s *shipment.ShipmentRequest, target shipment.Status, trackingRef, detail, source string) (bool, error) {
	if s.Status == target {
		return false, nil
	}
	if !s.CanTransitionTo(target) {
		if s.IsTerminal() {
			l.logger.Warn().
				Str("shipment_id", s.ID.String()).
				Str("status", string(s.Status)).
				Str("target", string(target)).
				Str("source", source).
				Msg("skipping late tracking report against settled shipment")
			return false, nil
		}
		return false, domainErrors.NewDomainError(
			"invalid_transition",
			fmt.Sprintf("cannot transition from %s to %s", s.Status, target),
			domainErrors.ErrInvalidStateTransition,
		)
	}

	switch target {
	case shipment.StatusCreated:
		if err := s.MarkCreated(trackingRef); err != nil {
			return false, err
		}
	case shipment.StatusFailed:
		if detail == "" {
			detail = "reported failed by carrier"
		}
		if err := s.MarkFailed(detail); err != nil {
			return false, err
		}
	default:
		if err := s.TransitionTo(target); err != nil {
			return false, err
		}
	}

	if err := l.shipments.Update(ctx, s); err != nil {
		return false, err
	}

	l.logger.Info().
		Str("shipment_id", s.ID.String()).
		Str("order_id", s.OrderID.String()).
		Str("status", string(target)).
		Str("source", source).
		Msg("shipment transitioned")

	return true, nil
}
