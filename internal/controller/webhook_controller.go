package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/providers"
	"github.com/omnisouq/gateway/internal/service"
)

// maxWebhookBody caps inbound callback payloads.
const maxWebhookBody = 1 << 20

// signatureHeaders maps each provider to the header its callbacks sign with.
var signatureHeaders = map[string]string{
	providers.Razorpay: "X-Razorpay-Signature",
	providers.Dibsy:    "Dibsy-Signature",
	providers.Telr:     "X-Telr-Signature",
	providers.Moyasar:  "X-Webhook-Token",
	providers.OmanNet:  "X-OmanNet-Signature",
	providers.Aramex:   "X-Aramex-Signature",
}

type ingestFunc func(ctx context.Context, providerName string, payload []byte, signature string) error

// WebhookController terminates provider callbacks. Response codes drive
// provider retry behavior: 2xx acknowledges, 401 rejects a forged delivery,
// and 5xx asks for redelivery.
type WebhookController struct {
	webhookService *service.WebhookService
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(webhookService *service.WebhookService) *WebhookController {
	return &WebhookController{webhookService: webhookService}
}

// PaymentWebhook handles POST /webhooks/payments/{provider}
func (h *WebhookController) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.webhookService.IngestPayment)
}

// ShippingWebhook handles POST /webhooks/shipping/{provider}
func (h *WebhookController) ShippingWebhook(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.webhookService.IngestShipping)
}

// ListExhausted handles GET /api/v1/webhooks/exhausted. Events that ran out
// of processing attempts wait here for an operator.
func (h *WebhookController) ListExhausted(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	events, err := h.webhookService.ListExhausted(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*WebhookEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, FromWebhookEvent(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *WebhookController) handle(w http.ResponseWriter, r *http.Request, ingest ingestFunc) {
	providerName := chi.URLParam(r, "provider")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unreadable payload", Code: "invalid_payload"})
		return
	}

	header, ok := signatureHeaders[providerName]
	if !ok {
		header = "X-Webhook-Signature"
	}
	signature := r.Header.Get(header)

	err = ingest(r.Context(), providerName, payload, signature)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, domainErrors.ErrWebhookAttemptsExceeded):
		// Acknowledge so the provider stops redelivering; the event is parked
		// for an operator.
		writeJSON(w, http.StatusOK, map[string]string{"status": "parked"})
	case errors.Is(err, domainErrors.ErrWebhookSignatureInvalid):
		writeError(w, err)
	case errors.Is(err, domainErrors.ErrProviderNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown provider " + providerName, Code: "unknown_provider"})
	case errors.Is(err, domainErrors.ErrValidationFailed):
		writeError(w, err)
	default:
		// Transient failure, including an intent whose provider reference has
		// not landed yet. Ask the provider to redeliver.
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "processing failed, retry later", Code: "retry"})
	}
}
