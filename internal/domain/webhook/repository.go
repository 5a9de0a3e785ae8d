package webhook

import (
	"context"
)

// Repository defines the interface for webhook event persistence
type Repository interface {
	// Create inserts a new event. Returns ErrDuplicateIdempotencyKey when an
	// event with the same (provider, event id) already exists.
	Create(ctx context.Context, e *Event) error

	// GetByProviderEventID retrieves an event by its provider-assigned id
	GetByProviderEventID(ctx context.Context, provider, eventID string) (*Event, error)

	// Update persists the processed flag, attempt counter and last error
	Update(ctx context.Context, e *Event) error

	// ListUnprocessed returns events eligible for re-processing: not yet
	// processed and below the attempt cap.
	ListUnprocessed(ctx context.Context, maxAttempts, limit int) ([]*Event, error)

	// ListExhausted returns events that burned through all attempts and need
	// operator attention.
	ListExhausted(ctx context.Context, maxAttempts, limit int) ([]*Event, error)
}
