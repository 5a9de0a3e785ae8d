package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/omnisouq/gateway/internal/providers"
	"github.com/omnisouq/gateway/internal/service"
)

// ShippingController handles shipment-related HTTP requests.
type ShippingController struct {
	shippingService *service.ShippingService
}

// NewShippingController creates a new ShippingController.
func NewShippingController(shippingService *service.ShippingService) *ShippingController {
	return &ShippingController{shippingService: shippingService}
}

// CreateShipment handles POST /api/v1/shipments
func (h *ShippingController) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var req CreateShipmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sh, err := h.shippingService.CreateShipment(r.Context(), req.toShippingInput())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromShipment(sh))
}

// GetShipment handles GET /api/v1/shipments/{id}
func (h *ShippingController) GetShipment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid shipment id", Code: "invalid_id"})
		return
	}

	sh, err := h.shippingService.GetShipment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromShipment(sh))
}

// RefreshTracking handles POST /api/v1/shipments/{id}/tracking
func (h *ShippingController) RefreshTracking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid shipment id", Code: "invalid_id"})
		return
	}

	sh, err := h.shippingService.RefreshTracking(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromShipment(sh))
}

// GetRates handles GET /api/v1/shipping/rates
func (h *ShippingController) GetRates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region := q.Get("region")
	if region == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "region is required", Code: "validation_error"})
		return
	}
	weight, _ := strconv.ParseInt(q.Get("weight_grams"), 10, 64)
	if weight <= 0 {
		weight = 500
	}

	rates, err := h.shippingService.GetRates(r.Context(), region, providers.RateRequest{
		OriginCountry:      q.Get("origin"),
		DestinationCountry: q.Get("destination"),
		DestinationCity:    q.Get("city"),
		Method:             q.Get("method"),
		WeightGrams:        weight,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromRates(rates))
}
