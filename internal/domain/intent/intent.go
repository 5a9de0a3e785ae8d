package intent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/omnisouq/gateway/internal/domain/errors"
)

// Status represents the payment intent status in the state machine
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Amount represents a monetary amount in the smallest currency unit (e.g. paise, halalas).
type Amount struct {
	ValueMinor int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.ValueMinor / 100
	frac := a.ValueMinor % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	if a.ValueMinor <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if len(a.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}

// PaymentIntent tracks one logical charge attempt against a regional provider.
// Rows are never deleted; every status change is appended to the event history.
type PaymentIntent struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	IdempotencyKey    string
	Amount            Amount
	Region            string
	Provider          string
	Status            Status
	ProviderReference *string
	RedirectURL       *string
	LastError         *string
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// NewPaymentIntent creates a pending intent for the given order and region.
func NewPaymentIntent(orderID uuid.UUID, idempotencyKey string, amount Amount, region, provider string) (*PaymentIntent, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if idempotencyKey == "" {
		return nil, errors.ErrInvalidInput
	}
	if provider == "" {
		return nil, errors.NewValidationError("provider", "cannot be empty")
	}

	now := time.Now()
	return &PaymentIntent{
		ID:             uuid.New(),
		OrderID:        orderID,
		IdempotencyKey: idempotencyKey,
		Amount:         amount,
		Region:         region,
		Provider:       provider,
		Status:         StatusPending,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// transitions is the allowed forward-only status graph. Terminal states admit
// no exit except completed→refunded.
var transitions = map[Status][]Status{
	StatusPending: {
		StatusProcessing,
		StatusCompleted, // provider confirmed before we saw "processing"
		StatusFailed,
		StatusCancelled,
	},
	StatusProcessing: {
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	},
	StatusCompleted: {
		StatusRefunded,
	},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusRefunded:  {},
}

// CanTransitionTo checks if the intent can transition to the given status
func (p *PaymentIntent) CanTransitionTo(newStatus Status) bool {
	allowed, exists := transitions[p.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the intent to a new status
func (p *PaymentIntent) TransitionTo(newStatus Status) error {
	if p.Status == newStatus {
		return errors.NewDomainError(
			"stale_transition",
			"intent already in status "+string(newStatus),
			errors.ErrStaleTransition,
		)
	}
	if !p.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(p.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	p.Status = newStatus
	p.UpdatedAt = time.Now()

	if newStatus == StatusCompleted || newStatus == StatusFailed || newStatus == StatusCancelled {
		now := time.Now()
		p.CompletedAt = &now
	}

	return nil
}

// MarkProcessing transitions the intent to processing status
func (p *PaymentIntent) MarkProcessing() error {
	return p.TransitionTo(StatusProcessing)
}

// MarkCompleted transitions the intent to completed status
func (p *PaymentIntent) MarkCompleted(providerRef *string) error {
	if err := p.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	if providerRef != nil {
		p.ProviderReference = providerRef
	}
	return nil
}

// MarkFailed transitions the intent to failed status
func (p *PaymentIntent) MarkFailed(errorMsg string) error {
	if err := p.TransitionTo(StatusFailed); err != nil {
		return err
	}
	p.LastError = &errorMsg
	return nil
}

// MarkCancelled transitions the intent to cancelled status
func (p *PaymentIntent) MarkCancelled() error {
	return p.TransitionTo(StatusCancelled)
}

// MarkRefunded transitions the intent to refunded status
func (p *PaymentIntent) MarkRefunded() error {
	return p.TransitionTo(StatusRefunded)
}

// IsTerminal checks if the intent is in a terminal state. Refund remains
// possible from completed, but completed counts as terminal for the
// reconciler's stuck-intent sweep.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status == StatusCompleted ||
		p.Status == StatusFailed ||
		p.Status == StatusCancelled ||
		p.Status == StatusRefunded
}

// ResetForRetry reopens a failed intent for a new attempt under the same
// idempotency key. This is a caller-initiated retry, not a provider
// transition, so it deliberately bypasses the forward-only graph. The prior
// failure stays in the event history.
func (p *PaymentIntent) ResetForRetry() {
	p.Status = StatusPending
	p.ProviderReference = nil
	p.RedirectURL = nil
	p.LastError = nil
	p.CompletedAt = nil
	p.UpdatedAt = time.Now()
}

// SetProviderReference records the provider-side transaction id.
func (p *PaymentIntent) SetProviderReference(ref string) {
	p.ProviderReference = &ref
	p.UpdatedAt = time.Now()
}
