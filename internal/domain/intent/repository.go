package intent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for payment intent persistence
type Repository interface {
	// Create inserts a new intent. Returns ErrDuplicateIdempotencyKey when a
	// row with the same idempotency key already exists; this is the
	// insert-if-absent primitive the idempotency guard relies on.
	Create(ctx context.Context, p *PaymentIntent) error

	// GetByID retrieves an intent by ID
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentIntent, error)

	// GetByIdempotencyKey retrieves an intent by idempotency key
	GetByIdempotencyKey(ctx context.Context, key string) (*PaymentIntent, error)

	// GetByProviderReference retrieves an intent by provider-side reference
	GetByProviderReference(ctx context.Context, provider, reference string) (*PaymentIntent, error)

	// Update persists a mutated intent using an optimistic version check.
	// Returns ErrOptimisticLockFailed when the stored version has moved on.
	Update(ctx context.Context, p *PaymentIntent) error

	// List lists intents with filters
	List(ctx context.Context, filter ListFilter) ([]*PaymentIntent, error)

	// ListStuck returns non-terminal intents last updated before the cutoff,
	// for the reconciler sweep.
	ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*PaymentIntent, error)

	// AddEvent appends a status-history event for audit
	AddEvent(ctx context.Context, event *Event) error

	// GetEvents retrieves the status history for an intent
	GetEvents(ctx context.Context, intentID uuid.UUID) ([]*Event, error)
}

// ListFilter defines filters for listing intents
type ListFilter struct {
	OrderID   *uuid.UUID
	Status    *Status
	Provider  *string
	Region    *string
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Event represents one entry in an intent's status history
type Event struct {
	ID        uuid.UUID
	IntentID  uuid.UUID
	EventType string
	EventData map[string]any
	CreatedAt time.Time
}
