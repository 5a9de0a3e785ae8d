package webhook

import (
	"time"

	"github.com/google/uuid"
	"github.com/omnisouq/gateway/internal/domain/errors"
)

// Kind distinguishes payment callbacks from shipping callbacks.
type Kind string

const (
	KindPayment  Kind = "payment"
	KindShipping Kind = "shipping"
)

// Event is one webhook delivery as received from a provider. The
// (provider, event id) pair is unique: redeliveries map onto the same row and
// are never applied twice. Rows are retained indefinitely for audit.
type Event struct {
	ID                 uuid.UUID
	EventID            string // provider-assigned id, unique per provider
	Provider           string
	Kind               Kind
	EventType          string
	RawPayload         []byte
	Signature          string
	ReceivedAt         time.Time
	Processed          bool
	ProcessingAttempts int
	LastError          *string
}

// NewEvent creates an unprocessed webhook event record.
func NewEvent(provider string, kind Kind, eventID, eventType string, payload []byte, signature string) (*Event, error) {
	if eventID == "" {
		return nil, errors.NewValidationError("event_id", "cannot be empty")
	}
	if provider == "" {
		return nil, errors.NewValidationError("provider", "cannot be empty")
	}
	return &Event{
		ID:         uuid.New(),
		EventID:    eventID,
		Provider:   provider,
		Kind:       kind,
		EventType:  eventType,
		RawPayload: payload,
		Signature:  signature,
		ReceivedAt: time.Now(),
	}, nil
}

// MarkProcessed flips the processed flag after the local state mutation commits.
func (e *Event) MarkProcessed() {
	e.Processed = true
}

// RecordFailure increments the attempt counter and stores the failure reason.
func (e *Event) RecordFailure(reason string) {
	e.ProcessingAttempts++
	e.LastError = &reason
}

// Exhausted reports whether the event has used up its processing attempts.
func (e *Event) Exhausted(maxAttempts int) bool {
	return !e.Processed && e.ProcessingAttempts >= maxAttempts
}
