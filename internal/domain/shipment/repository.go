package shipment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for shipment persistence
type Repository interface {
	// Create inserts a new shipment request
	Create(ctx context.Context, s *ShipmentRequest) error

	// GetByID retrieves a shipment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*ShipmentRequest, error)

	// GetByTrackingReference retrieves a shipment by carrier tracking reference
	GetByTrackingReference(ctx context.Context, provider, reference string) (*ShipmentRequest, error)

	// Update persists a mutated shipment using an optimistic version check
	Update(ctx context.Context, s *ShipmentRequest) error

	// ListStuck returns non-terminal shipments last updated before the cutoff
	ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*ShipmentRequest, error)
}
