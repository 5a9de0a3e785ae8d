package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/webhook"
	"github.com/omnisouq/gateway/internal/infrastructure/observability"
	"github.com/omnisouq/gateway/internal/providers"
)

// WebhookService is the ingestion pipeline for provider callbacks. Stages:
// signature check, durable record keyed on (provider, event id), parse, and
// the shared lifecycle mutation. An event is only marked processed after the
// local mutation commits, so a crash between the two replays the event
// instead of losing it.
type WebhookService struct {
	events      webhook.Repository
	router      *providers.Router
	resolver    *WebhookResolver
	metrics     *observability.Metrics
	maxAttempts int
	logger      zerolog.Logger
}

// NewWebhookService creates the webhook ingestion pipeline. maxAttempts caps
// how often a failing event is retried before it is parked for an operator.
func NewWebhookService(
	events webhook.Repository,
	router *providers.Router,
	resolver *WebhookResolver,
	metrics *observability.Metrics,
	maxAttempts int,
	logger zerolog.Logger,
) *WebhookService {
	return &WebhookService{
		events:      events,
		router:      router,
		resolver:    resolver,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// IngestPayment handles one payment webhook delivery.
func (s *WebhookService) IngestPayment(ctx context.Context, providerName string, payload []byte, signature string) error {
	adapter, _, err := s.router.PaymentByName(providerName)
	if err != nil {
		return err
	}
	return s.ingest(ctx, providerName, webhook.KindPayment, adapter.ValidateWebhook, adapter.ProcessWebhook, payload, signature)
}

// IngestShipping handles one carrier webhook delivery.
func (s *WebhookService) IngestShipping(ctx context.Context, providerName string, payload []byte, signature string) error {
	adapter, _, err := s.router.ShippingByName(providerName)
	if err != nil {
		return err
	}
	return s.ingest(ctx, providerName, webhook.KindShipping, adapter.ValidateWebhook, adapter.ProcessWebhook, payload, signature)
}

func (s *WebhookService) ingest(
	ctx context.Context,
	providerName string,
	kind webhook.Kind,
	validate func(payload []byte, signature string) bool,
	process func(payload []byte) (*providers.WebhookResult, error),
	payload []byte,
	signature string,
) error {
	// Stage 1: authenticity. An unverifiable payload is dropped before any
	// state is touched or even parsed.
	if !validate(payload, signature) {
		s.metrics.WebhooksTotal.WithLabelValues(providerName, string(kind), "rejected").Inc()
		return domainErrors.NewDomainError(
			"invalid_signature",
			"webhook signature verification failed for "+providerName,
			domainErrors.ErrWebhookSignatureInvalid,
		)
	}

	result, err := process(payload)
	if err != nil {
		s.metrics.WebhooksTotal.WithLabelValues(providerName, string(kind), "malformed").Inc()
		return err
	}

	// Stage 2: durable dedup record. The unique (provider, event id) insert
	// decides exactly once who processes this delivery.
	evt, err := webhook.NewEvent(providerName, kind, result.EventID, result.EventType, payload, signature)
	if err != nil {
		return err
	}
	if err := s.events.Create(ctx, evt); err != nil {
		if !errors.Is(err, domainErrors.ErrDuplicateIdempotencyKey) {
			return fmt.Errorf("record webhook event: %w", err)
		}
		existing, readErr := s.events.GetByProviderEventID(ctx, providerName, result.EventID)
		if readErr != nil {
			return fmt.Errorf("load webhook event: %w", readErr)
		}
		if existing.Processed {
			// Redelivery of an applied event: acknowledge without reapplying.
			s.metrics.WebhooksTotal.WithLabelValues(providerName, string(kind), "duplicate").Inc()
			return nil
		}
		if existing.Exhausted(s.maxAttempts) {
			s.metrics.WebhooksTotal.WithLabelValues(providerName, string(kind), "exhausted").Inc()
			return domainErrors.ErrWebhookAttemptsExceeded
		}
		evt = existing
	}

	return s.apply(ctx, evt, result)
}

// apply runs the lifecycle mutation for a recorded event and settles the
// event's bookkeeping.
func (s *WebhookService) apply(ctx context.Context, evt *webhook.Event, result *providers.WebhookResult) error {
	err := s.resolver.Apply(ctx, evt.Provider, result)
	if err != nil {
		evt.RecordFailure(err.Error())
		if updErr := s.events.Update(ctx, evt); updErr != nil {
			s.logger.Error().Err(updErr).Str("event_id", evt.EventID).Msg("failed to record webhook attempt")
		}
		s.metrics.WebhooksTotal.WithLabelValues(evt.Provider, string(evt.Kind), "failed").Inc()
		if evt.Exhausted(s.maxAttempts) {
			s.logger.Error().
				Str("provider", evt.Provider).
				Str("event_id", evt.EventID).
				Int("attempts", evt.ProcessingAttempts).
				Msg("webhook event exhausted its attempts, parking for operator")
			return domainErrors.ErrWebhookAttemptsExceeded
		}
		return err
	}

	evt.MarkProcessed()
	if err := s.events.Update(ctx, evt); err != nil {
		// The mutation committed; the worst case on crash is one redundant
		// reapply, which the lifecycle treats as stale.
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	s.metrics.WebhooksTotal.WithLabelValues(evt.Provider, string(evt.Kind), "processed").Inc()
	return nil
}

// SweepUnprocessed retries events that failed transiently, oldest first.
// Returns how many events were settled in this pass.
func (s *WebhookService) SweepUnprocessed(ctx context.Context, limit int) (int, error) {
	events, err := s.events.ListUnprocessed(ctx, s.maxAttempts, limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, evt := range events {
		result, err := s.reparse(evt)
		if err != nil {
			evt.RecordFailure(err.Error())
			if updErr := s.events.Update(ctx, evt); updErr != nil {
				s.logger.Error().Err(updErr).Str("event_id", evt.EventID).Msg("failed to record webhook attempt")
			}
			continue
		}
		if err := s.apply(ctx, evt, result); err != nil {
			s.logger.Warn().Err(err).
				Str("provider", evt.Provider).
				Str("event_id", evt.EventID).
				Msg("webhook retry failed")
			continue
		}
		settled++
	}
	return settled, nil
}

// ListExhausted exposes parked events for operator tooling.
func (s *WebhookService) ListExhausted(ctx context.Context, limit int) ([]*webhook.Event, error) {
	return s.events.ListExhausted(ctx, s.maxAttempts, limit)
}

// reparse re-runs the adapter parse for a stored payload.
func (s *WebhookService) reparse(evt *webhook.Event) (*providers.WebhookResult, error) {
	switch evt.Kind {
	case webhook.KindPayment:
		adapter, _, err := s.router.PaymentByName(evt.Provider)
		if err != nil {
			return nil, err
		}
		return adapter.ProcessWebhook(evt.RawPayload)
	case webhook.KindShipping:
		adapter, _, err := s.router.ShippingByName(evt.Provider)
		if err != nil {
			return nil, err
		}
		return adapter.ProcessWebhook(evt.RawPayload)
	default:
		return nil, fmt.Errorf("unknown webhook kind %q", evt.Kind)
	}
}
