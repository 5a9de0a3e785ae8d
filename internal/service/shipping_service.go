package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/infrastructure/observability"
	"github.com/omnisouq/gateway/internal/normalizer"
	"github.com/omnisouq/gateway/internal/providers"
)

// ShippingService handles shipment booking, rate quotes and tracking against
// the regional carriers.
type ShippingService struct {
	shipments shipment.Repository
	router    *providers.Router
	lifecycle *Lifecycle
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewShippingService creates a new ShippingService.
func NewShippingService(
	shipments shipment.Repository,
	router *providers.Router,
	lifecycle *Lifecycle,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *ShippingService {
	return &ShippingService{
		shipments: shipments,
		router:    router,
		lifecycle: lifecycle,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateShipment validates the request, books it with the regional carrier
// and records the tracking reference. The row is persisted as pending before
// the carrier call so a timeout leaves a reconcilable record instead of a
// lost booking.
func (s *ShippingService) CreateShipment(ctx context.Context, in normalizer.ShippingInput) (*shipment.ShipmentRequest, error) {
	req, err := normalizer.NormalizeShipping(in)
	if err != nil {
		return nil, err
	}

	adapter, breaker, regionCfg, err := s.router.RouteShipping(req.Region)
	if err != nil {
		return nil, err
	}

	sh, err := shipment.NewShipmentRequest(req.OrderID, req.Region, adapter.Name(), req.Method)
	if err != nil {
		return nil, err
	}
	if err := s.shipments.Create(ctx, sh); err != nil {
		return nil, err
	}

	var weightGrams, declaredMinor int64
	var piecesCount int
	for _, item := range req.Items {
		declaredMinor += item.TotalPriceMinor
		piecesCount += int(item.Quantity)
	}
	weightGrams = int64(piecesCount) * 500 // carrier default when checkout sends no weights

	result, err := breaker.Execute(func() (any, error) {
		return adapter.CreateShipment(ctx, providers.ShipmentCreateRequest{
			ShipmentID:    sh.ID.String(),
			OrderID:       req.OrderID.String(),
			Method:        req.Method,
			CustomerName:  req.Customer.Name,
			AddressLine:   req.ShippingAddress.Line1,
			City:          req.ShippingAddress.City,
			Country:       req.ShippingAddress.Country,
			WeightGrams:   weightGrams,
			PiecesCount:   piecesCount,
			DeclaredMinor: declaredMinor,
			Currency:      regionCfg.Currency,
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = domainErrors.NewDomainError(
				"provider_unavailable",
				"shipping provider "+adapter.Name()+" is unavailable",
				domainErrors.ErrProviderUnavailable,
			)
		}
		if !errors.Is(err, domainErrors.ErrProviderTimeout) {
			// Timeouts stay pending for the reconciler; rejections settle now.
			if _, applyErr := s.lifecycle.ApplyShipment(ctx, sh, shipment.StatusFailed, "", err.Error(), "create"); applyErr != nil {
				s.logger.Error().Err(applyErr).Str("shipment_id", sh.ID.String()).Msg("failed to settle rejected shipment")
			}
		}
		s.metrics.ShipmentsTotal.WithLabelValues(adapter.Name(), "error").Inc()
		return nil, err
	}

	resp, ok := result.(*providers.ShipmentResponse)
	if !ok || resp == nil {
		return nil, fmt.Errorf("unexpected carrier response type %T", result)
	}
	if _, err := s.lifecycle.ApplyShipment(ctx, sh, shipment.StatusCreated, resp.TrackingReference, "", "create"); err != nil {
		return nil, err
	}
	s.metrics.ShipmentsTotal.WithLabelValues(adapter.Name(), "created").Inc()
	return sh, nil
}

// GetShipment retrieves a shipment by ID.
func (s *ShippingService) GetShipment(ctx context.Context, id uuid.UUID) (*shipment.ShipmentRequest, error) {
	return s.shipments.GetByID(ctx, id)
}

// GetRates quotes shipping cost for a region and destination.
func (s *ShippingService) GetRates(ctx context.Context, regionCode string, req providers.RateRequest) ([]providers.Rate, error) {
	adapter, breaker, _, err := s.router.RouteShipping(regionCode)
	if err != nil {
		return nil, err
	}
	result, err := breaker.Execute(func() (any, error) {
		return adapter.GetRates(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	rates, ok := result.([]providers.Rate)
	if !ok {
		return nil, fmt.Errorf("unexpected carrier response type %T", result)
	}
	return rates, nil
}

// RefreshTracking polls the carrier for the current tracking state and
// applies it through the shared lifecycle.
func (s *ShippingService) RefreshTracking(ctx context.Context, id uuid.UUID) (*shipment.ShipmentRequest, error) {
	sh, err := s.shipments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.syncFromCarrier(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// syncFromCarrier is the reconciliation path shared with the sweep.
func (s *ShippingService) syncFromCarrier(ctx context.Context, sh *shipment.ShipmentRequest) (bool, error) {
	if sh.IsTerminal() {
		return false, nil
	}
	if sh.TrackingReference == nil {
		return s.lifecycle.ApplyShipment(ctx, sh, shipment.StatusFailed, "", "no tracking reference after grace window", "reconciler")
	}

	adapter, breaker, err := s.router.ShippingByName(sh.Provider)
	if err != nil {
		return false, err
	}
	result, err := breaker.Execute(func() (any, error) {
		return adapter.GetTracking(ctx, *sh.TrackingReference)
	})
	if err != nil {
		return false, fmt.Errorf("poll carrier tracking: %w", err)
	}
	resp, ok := result.(*providers.TrackingResponse)
	if !ok || resp == nil {
		return false, fmt.Errorf("unexpected carrier response type %T", result)
	}

	if resp.Status == sh.Status {
		return false, nil
	}
	return s.lifecycle.ApplyShipment(ctx, sh, resp.Status, *sh.TrackingReference, resp.Description, "reconciler")
}
