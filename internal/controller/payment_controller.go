package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/service"
)

// PaymentController handles payment-related HTTP requests.
type PaymentController struct {
	paymentService *service.PaymentService
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paymentService}
}

// CreatePayment handles POST /api/v1/payments. The Idempotency-Key header is
// required: retries without one cannot be deduplicated and checkout always
// supplies it.
func (h *PaymentController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Idempotency-Key header is required", Code: "missing_idempotency_key"})
		return
	}

	resp, err := h.paymentService.CreatePayment(r.Context(), req.toPaymentInput(idempotencyKey))
	if err != nil {
		writeError(w, err)
		return
	}

	out := FromIntent(resp.Intent)
	out.Replayed = resp.Replayed
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	p, err := h.paymentService.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromIntent(p))
}

// ListPayments handles GET /api/v1/payments
func (h *PaymentController) ListPayments(w http.ResponseWriter, r *http.Request) {
	filter := intent.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := intent.Status(s)
		filter.Status = &status
	}
	if s := r.URL.Query().Get("order_id"); s != "" {
		id, err := uuid.Parse(s)
		if err == nil {
			filter.OrderID = &id
		}
	}
	if s := r.URL.Query().Get("provider"); s != "" {
		filter.Provider = &s
	}
	if s := r.URL.Query().Get("region"); s != "" {
		filter.Region = &s
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	filter.SortBy = r.URL.Query().Get("sort_by")
	filter.SortOrder = r.URL.Query().Get("sort_order")

	intents, err := h.paymentService.ListPayments(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*IntentResponse, 0, len(intents))
	for _, p := range intents {
		resp = append(resp, FromIntent(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPaymentEvents handles GET /api/v1/payments/{id}/events
func (h *PaymentController) GetPaymentEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	events, err := h.paymentService.GetPaymentEvents(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*IntentEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, FromIntentEvent(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// VerifyPayment handles POST /api/v1/payments/{id}/verify
func (h *PaymentController) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	var req VerifyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.paymentService.VerifyPayment(r.Context(), id, req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromIntent(p))
}

// RefundPayment handles POST /api/v1/payments/{id}/refund
func (h *PaymentController) RefundPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	var req RefundRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	p, err := h.paymentService.RefundPayment(r.Context(), id, req.AmountMinor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromIntent(p))
}
