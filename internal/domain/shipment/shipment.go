package shipment

import (
	"time"

	"github.com/google/uuid"
	"github.com/omnisouq/gateway/internal/domain/errors"
)

// Status represents the shipment status in the state machine
type Status string

const (
	StatusPending   Status = "pending"
	StatusCreated   Status = "created"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ShipmentRequest tracks one shipment booked with a regional carrier.
// Same ownership pattern as payment intents: never deleted, history appended.
type ShipmentRequest struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	Region            string
	Provider          string
	Method            string
	Status            Status
	TrackingReference *string
	LastError         *string
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewShipmentRequest creates a pending shipment for the given order.
func NewShipmentRequest(orderID uuid.UUID, region, provider, method string) (*ShipmentRequest, error) {
	if provider == "" {
		return nil, errors.NewValidationError("provider", "cannot be empty")
	}
	if method == "" {
		return nil, errors.NewValidationError("method", "cannot be empty")
	}

	now := time.Now()
	return &ShipmentRequest{
		ID:        uuid.New(),
		OrderID:   orderID,
		Region:    region,
		Provider:  provider,
		Method:    method,
		Status:    StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusCreated, StatusFailed, StatusCancelled},
	StatusCreated:   {StatusInTransit, StatusDelivered, StatusFailed, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusFailed},
	StatusDelivered: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// CanTransitionTo checks if the shipment can transition to the given status
func (s *ShipmentRequest) CanTransitionTo(newStatus Status) bool {
	allowed, exists := transitions[s.Status]
	if !exists {
		return false
	}
	for _, st := range allowed {
		if st == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the shipment to a new status
func (s *ShipmentRequest) TransitionTo(newStatus Status) error {
	if s.Status == newStatus {
		return errors.NewDomainError(
			"stale_transition",
			"shipment already in status "+string(newStatus),
			errors.ErrStaleTransition,
		)
	}
	if !s.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(s.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	s.Status = newStatus
	s.UpdatedAt = time.Now()
	return nil
}

// MarkCreated records the carrier booking and tracking reference.
func (s *ShipmentRequest) MarkCreated(trackingRef string) error {
	if err := s.TransitionTo(StatusCreated); err != nil {
		return err
	}
	s.TrackingReference = &trackingRef
	return nil
}

// MarkFailed transitions the shipment to failed status
func (s *ShipmentRequest) MarkFailed(errorMsg string) error {
	if err := s.TransitionTo(StatusFailed); err != nil {
		return err
	}
	s.LastError = &errorMsg
	return nil
}

// IsTerminal checks if the shipment is in a terminal state
func (s *ShipmentRequest) IsTerminal() bool {
	return s.Status == StatusDelivered ||
		s.Status == StatusFailed ||
		s.Status == StatusCancelled
}
