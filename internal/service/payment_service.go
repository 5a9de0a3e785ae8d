package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/idempotency"
	"github.com/omnisouq/gateway/internal/infrastructure/observability"
	"github.com/omnisouq/gateway/internal/normalizer"
	"github.com/omnisouq/gateway/internal/providers"
)

// PaymentService handles payment-related business logic: normalization,
// regional routing, the guarded provider call and status queries.
type PaymentService struct {
	intents     intent.Repository
	router      *providers.Router
	guard       *idempotency.Guard
	lifecycle   *Lifecycle
	metrics     *observability.Metrics
	callbackURL string
	logger      zerolog.Logger
}

// NewPaymentService creates a new PaymentService. callbackURL is the public
// base under which providers reach the webhook endpoints.
func NewPaymentService(
	intents intent.Repository,
	router *providers.Router,
	guard *idempotency.Guard,
	lifecycle *Lifecycle,
	metrics *observability.Metrics,
	callbackURL string,
	logger zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		intents:     intents,
		router:      router,
		guard:       guard,
		lifecycle:   lifecycle,
		metrics:     metrics,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// CreatePaymentResponse holds the result of creating a payment.
type CreatePaymentResponse struct {
	Intent *intent.PaymentIntent
	// Replayed is true when a prior attempt with the same idempotency key was
	// returned instead of contacting the provider again.
	Replayed bool
}

// CreatePayment validates the request, resolves the regional provider and
// performs the guarded provider call. Retries with the same idempotency key
// return the original intent without a second charge attempt.
func (s *PaymentService) CreatePayment(ctx context.Context, in normalizer.PaymentInput) (*CreatePaymentResponse, error) {
	req, err := normalizer.NormalizePayment(in)
	if err != nil {
		return nil, err
	}

	adapter, breaker, regionCfg, err := s.router.RoutePayment(req.Region)
	if err != nil {
		return nil, err
	}
	if req.Currency != regionCfg.Currency {
		return nil, domainErrors.NewValidationError(
			"currency",
			fmt.Sprintf("region %s settles in %s, got %s", regionCfg.Code, regionCfg.Currency, req.Currency),
		)
	}

	key := req.IdempotencyKey.String()
	start := time.Now()
	result, err := s.guard.Run(ctx, key,
		func() (*intent.PaymentIntent, error) {
			return intent.NewPaymentIntent(
				req.OrderID,
				key,
				intent.Amount{ValueMinor: req.AmountMinor, Currency: req.Currency},
				req.Region,
				adapter.Name(),
			)
		},
		func(opCtx context.Context, reserved *intent.PaymentIntent) error {
			return s.callProvider(opCtx, adapter, breaker, req, reserved)
		},
	)
	if err != nil {
		s.metrics.PaymentsTotal.WithLabelValues(adapter.Name(), "error").Inc()
		return nil, err
	}

	outcome := "created"
	if result.Replayed {
		outcome = "replayed"
	}
	s.metrics.PaymentsTotal.WithLabelValues(adapter.Name(), outcome).Inc()
	s.metrics.PaymentDuration.WithLabelValues(adapter.Name()).Observe(time.Since(start).Seconds())

	return &CreatePaymentResponse{Intent: result.Intent, Replayed: result.Replayed}, nil
}

// callProvider performs the provider create call against a reserved intent
// and records the provider-side reference. A breaker-open condition surfaces
// as provider unavailable; the reservation stays pending and the reconciler
// never sees a phantom charge because the provider was not contacted.
func (s *PaymentService) callProvider(
	ctx context.Context,
	adapter providers.PaymentProvider,
	breaker *gobreaker.CircuitBreaker[*providers.PaymentResponse],
	req *normalizer.PaymentRequest,
	reserved *intent.PaymentIntent,
) error {
	resp, err := breaker.Execute(func() (*providers.PaymentResponse, error) {
		return adapter.CreatePayment(ctx, providers.CreateRequest{
			IntentID:       reserved.ID.String(),
			OrderID:        req.OrderID.String(),
			IdempotencyKey: reserved.IdempotencyKey,
			AmountMinor:    req.AmountMinor,
			Currency:       req.Currency,
			CustomerName:   req.Customer.Name,
			CustomerEmail:  req.Customer.Email,
			Description:    "order " + req.OrderID.String(),
			CallbackURL:    s.callbackURL + "/webhooks/payments/" + adapter.Name(),
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.metrics.ProviderErrors.WithLabelValues(adapter.Name(), "circuit_open").Inc()
			return domainErrors.NewDomainError(
				"provider_unavailable",
				"payment provider "+adapter.Name()+" is unavailable",
				domainErrors.ErrProviderUnavailable,
			)
		}
		s.metrics.ProviderErrors.WithLabelValues(adapter.Name(), providerErrorType(err)).Inc()
		return err
	}

	// Providers must echo the submitted amount; a mismatch means the charge
	// is not the one we asked for.
	if resp.AmountMinor != 0 && (resp.AmountMinor != req.AmountMinor || resp.Currency != req.Currency) {
		return domainErrors.NewProviderError(adapter.Name(),
			fmt.Sprintf("amount mismatch: sent %d %s, provider echoed %d %s",
				req.AmountMinor, req.Currency, resp.AmountMinor, resp.Currency),
			nil)
	}

	reserved.SetProviderReference(resp.Reference)
	if resp.RedirectURL != "" {
		reserved.RedirectURL = &resp.RedirectURL
	}
	if resp.Status == intent.StatusProcessing {
		if err := reserved.MarkProcessing(); err != nil {
			return err
		}
	}
	return s.intents.Update(ctx, reserved)
}

func providerErrorType(err error) string {
	switch {
	case errors.Is(err, domainErrors.ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, domainErrors.ErrProviderRejected):
		return "rejected"
	default:
		return "other"
	}
}

// GetPayment retrieves an intent by ID.
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*intent.PaymentIntent, error) {
	return s.intents.GetByID(ctx, id)
}

// GetPaymentByKey retrieves an intent by idempotency key.
func (s *PaymentService) GetPaymentByKey(ctx context.Context, key string) (*intent.PaymentIntent, error) {
	return s.intents.GetByIdempotencyKey(ctx, key)
}

// ListPayments lists intents with filters.
func (s *PaymentService) ListPayments(ctx context.Context, filter intent.ListFilter) ([]*intent.PaymentIntent, error) {
	return s.intents.List(ctx, filter)
}

// GetPaymentEvents returns the status history for an intent.
func (s *PaymentService) GetPaymentEvents(ctx context.Context, id uuid.UUID) ([]*intent.Event, error) {
	if _, err := s.intents.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.intents.GetEvents(ctx, id)
}

// VerifyPayment confirms a redirect-flow payment with the provider using the
// signature material the customer returned with, and settles the intent
// through the shared lifecycle.
func (s *PaymentService) VerifyPayment(ctx context.Context, id uuid.UUID, signature string) (*intent.PaymentIntent, error) {
	p, err := s.intents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ProviderReference == nil {
		return nil, domainErrors.NewDomainError(
			"not_verifiable",
			"intent has no provider reference yet",
			domainErrors.ErrInvalidStateTransition,
		)
	}

	adapter, breaker, err := s.router.PaymentByName(p.Provider)
	if err != nil {
		return nil, err
	}
	resp, err := breaker.Execute(func() (*providers.PaymentResponse, error) {
		return adapter.VerifyPayment(ctx, *p.ProviderReference, signature)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.lifecycle.ApplyPayment(ctx, p, resp.Status, resp.Reference, "", "verify"); err != nil {
		return nil, err
	}
	return p, nil
}

// RefundPayment refunds a completed intent. amountMinor of zero requests a
// full refund.
func (s *PaymentService) RefundPayment(ctx context.Context, id uuid.UUID, amountMinor int64) (*intent.PaymentIntent, error) {
	p, err := s.intents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != intent.StatusCompleted {
		return nil, domainErrors.NewDomainError(
			"invalid_refund",
			fmt.Sprintf("cannot refund payment in status %s", p.Status),
			domainErrors.ErrInvalidStateTransition,
		)
	}
	if amountMinor < 0 || amountMinor > p.Amount.ValueMinor {
		return nil, domainErrors.NewValidationError("amount_minor", "must be between 0 and the captured amount")
	}

	adapter, breaker, err := s.router.PaymentByName(p.Provider)
	if err != nil {
		return nil, err
	}

	ref := ""
	if p.ProviderReference != nil {
		ref = *p.ProviderReference
	}
	if _, err := breaker.Execute(func() (*providers.PaymentResponse, error) {
		return adapter.RefundPayment(ctx, providers.RefundRequest{
			Reference:   ref,
			AmountMinor: amountMinor,
			Currency:    p.Amount.Currency,
			Reason:      "merchant refund",
		})
	}); err != nil {
		return nil, fmt.Errorf("provider refund: %w", err)
	}

	if _, err := s.lifecycle.ApplyPayment(ctx, p, intent.StatusRefunded, ref, "", "refund"); err != nil {
		return nil, err
	}
	s.metrics.PaymentsTotal.WithLabelValues(adapter.Name(), "refunded").Inc()
	return p, nil
}

// SyncFromProvider polls the provider for the authoritative status of an
// unsettled intent and applies it through the shared lifecycle. This is the
// reconciliation path for timeouts: the outcome was unknown, so the provider
// is asked before anything is settled locally.
func (s *PaymentService) SyncFromProvider(ctx context.Context, p *intent.PaymentIntent) (bool, error) {
	if p.IsTerminal() {
		return false, nil
	}
	if p.ProviderReference == nil {
		// The create call never yielded a reference; the provider cannot have
		// a charge for us and the intent is safe to fail locally.
		return s.lifecycle.ApplyPayment(ctx, p, intent.StatusFailed, "", "no provider reference after grace window", "reconciler")
	}

	adapter, breaker, err := s.router.PaymentByName(p.Provider)
	if err != nil {
		return false, err
	}
	resp, err := breaker.Execute(func() (*providers.PaymentResponse, error) {
		return adapter.GetPaymentStatus(ctx, *p.ProviderReference)
	})
	if err != nil {
		return false, fmt.Errorf("poll provider status: %w", err)
	}

	if resp.Status == p.Status {
		return false, nil
	}
	return s.lifecycle.ApplyPayment(ctx, p, resp.Status, resp.Reference, "", "reconciler")
}
