package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/shipment"
)

const shipmentColumns = `id, order_id, region, provider, method, status,
	        tracking_reference, last_error, version, created_at, updated_at`

// ShipmentRepository implements shipment.Repository using PostgreSQL.
type ShipmentRepository struct {
	pool *pgxpool.Pool
}

// NewShipmentRepository creates a new ShipmentRepository.
func NewShipmentRepository(pool *pgxpool.Pool) *ShipmentRepository {
	return &ShipmentRepository{pool: pool}
}

func (r *ShipmentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new shipment request.
func (r *ShipmentRepository) Create(ctx context.Context, s *shipment.ShipmentRequest) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO shipment_requests
		 (id, order_id, region, provider, method, status,
		  tracking_reference, last_error, version, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		s.ID, s.OrderID, s.Region, s.Provider, s.Method, string(s.Status),
		s.TrackingReference, s.LastError, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert shipment request: %w", err)
	}
	return nil
}

// GetByID retrieves a shipment by its ID.
func (r *ShipmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*shipment.ShipmentRequest, error) {
	return r.scanShipment(r.db(ctx).QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipment_requests WHERE id = $1`, id))
}

// GetByTrackingReference retrieves a shipment by the carrier's tracking
// reference, the lookup carrier webhooks arrive with.
func (r *ShipmentRepository) GetByTrackingReference(ctx context.Context, provider, reference string) (*shipment.ShipmentRequest, error) {
	return r.scanShipment(r.db(ctx).QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipment_requests
		 WHERE provider = $1 AND tracking_reference = $2`, provider, reference))
}

// Update persists a mutated shipment with an optimistic version check.
func (r *ShipmentRepository) Update(ctx context.Context, s *shipment.ShipmentRequest) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE shipment_requests SET
		  status=$1, tracking_reference=$2, last_error=$3,
		  version=version+1, updated_at=$4
		 WHERE id=$5 AND version=$6`,
		string(s.Status), s.TrackingReference, s.LastError,
		s.UpdatedAt, s.ID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("update shipment request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db(ctx).QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM shipment_requests WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check shipment request: %w", err)
		}
		if !exists {
			return domainErrors.ErrShipmentNotFound
		}
		return domainErrors.ErrOptimisticLockFailed
	}
	s.Version++
	return nil
}

// ListStuck returns non-terminal shipments last touched before the cutoff.
func (r *ShipmentRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*shipment.ShipmentRequest, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+shipmentColumns+` FROM shipment_requests
		 WHERE status IN ('pending', 'created', 'in_transit') AND updated_at < $1
		 ORDER BY updated_at ASC LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stuck shipments: %w", err)
	}
	defer rows.Close()

	var shipments []*shipment.ShipmentRequest
	for rows.Next() {
		s, err := r.scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

// scanShipment scans a shipment from any source implementing the scanner interface.
func (r *ShipmentRepository) scanShipment(s scanner) (*shipment.ShipmentRequest, error) {
	sh := &shipment.ShipmentRequest{}
	var status string
	err := s.Scan(
		&sh.ID, &sh.OrderID, &sh.Region, &sh.Provider, &sh.Method, &status,
		&sh.TrackingReference, &sh.LastError, &sh.Version, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrShipmentNotFound
		}
		return nil, fmt.Errorf("scan shipment request: %w", err)
	}
	sh.Status = shipment.Status(status)
	return sh, nil
}
