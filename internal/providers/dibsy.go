package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/webhook"
)

// DibsyConfig holds the credentials and endpoint for the Dibsy adapter.
type DibsyConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// DibsyProvider serves the QA region. Bearer-token JSON API; webhooks signed
// with a base64 HMAC-SHA256 over the raw body.
type DibsyProvider struct {
	cfg    DibsyConfig
	client *restClient
}

// NewDibsyProvider creates a Dibsy adapter.
func NewDibsyProvider(cfg DibsyConfig) *DibsyProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.dibsy.one"
	}
	p := &DibsyProvider{cfg: cfg}
	p.client = newRESTClient(Dibsy, cfg.BaseURL, cfg.Timeout, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+cfg.SecretKey)
	})
	return p
}

func (p *DibsyProvider) Name() string { return Dibsy }

type dibsyPayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	RedirectURL string `json:"redirectUrl"`
	Links       struct {
		Checkout struct {
			Href string `json:"href"`
		} `json:"checkout"`
	} `json:"_links"`
}

// CreatePayment opens a Dibsy payment. The idempotency key is forwarded in
// metadata; local guard enforcement applies.
func (p *DibsyProvider) CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResponse, error) {
	body := map[string]any{
		"amount": map[string]string{
			"value":    formatMinor(req.AmountMinor),
			"currency": req.Currency,
		},
		"description": req.Description,
		"redirectUrl": req.CallbackURL,
		"metadata": map[string]string{
			"order_id":        req.OrderID,
			"idempotency_key": req.IdempotencyKey,
		},
	}

	var payment dibsyPayment
	if err := p.client.doJSON(ctx, http.MethodPost, "/v2/payments", body, &payment); err != nil {
		return nil, err
	}

	return &PaymentResponse{
		Provider:    Dibsy,
		Reference:   payment.ID,
		Status:      dibsyStatus(payment.Status),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		PaymentURL:  payment.Links.Checkout.Href,
	}, nil
}

// VerifyPayment re-fetches the payment after a checkout redirect.
func (p *DibsyProvider) VerifyPayment(ctx context.Context, reference, _ string) (*PaymentResponse, error) {
	return p.GetPaymentStatus(ctx, reference)
}

// RefundPayment refunds a completed payment.
func (p *DibsyProvider) RefundPayment(ctx context.Context, req RefundRequest) (*PaymentResponse, error) {
	body := map[string]any{}
	if req.AmountMinor > 0 {
		body["amount"] = map[string]string{
			"value":    formatMinor(req.AmountMinor),
			"currency": req.Currency,
		}
	}
	if req.Reason != "" {
		body["description"] = req.Reason
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := p.client.doJSON(ctx, http.MethodPost, "/v2/payments/"+req.Reference+"/refunds", body, &refund); err != nil {
		return nil, err
	}

	return &PaymentResponse{
		Provider:    Dibsy,
		Reference:   req.Reference,
		Status:      intent.StatusRefunded,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}, nil
}

// GetPaymentStatus polls a payment by id.
func (p *DibsyProvider) GetPaymentStatus(ctx context.Context, reference string) (*PaymentResponse, error) {
	var payment dibsyPayment
	if err := p.client.doJSON(ctx, http.MethodGet, "/v2/payments/"+reference, nil, &payment); err != nil {
		return nil, err
	}
	return &PaymentResponse{
		Provider:  Dibsy,
		Reference: payment.ID,
		Status:    dibsyStatus(payment.Status),
	}, nil
}

// ValidateWebhook verifies the base64 HMAC-SHA256 over the raw body.
func (p *DibsyProvider) ValidateWebhook(payload []byte, signature string) bool {
	return verifyHMACBase64(p.cfg.WebhookSecret, payload, signature)
}

type dibsyWebhook struct {
	ID        string `json:"id"`
	EventType string `json:"type"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

// ProcessWebhook parses a Dibsy event into the canonical result.
func (p *DibsyProvider) ProcessWebhook(payload []byte) (*WebhookResult, error) {
	var evt dibsyWebhook
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("parse dibsy webhook: %w", err)
	}
	if evt.ID == "" || evt.PaymentID == "" {
		return nil, domainErrors.NewValidationError("payload", "missing event or payment id")
	}

	return &WebhookResult{
		EventID:       evt.ID,
		EventType:     evt.EventType,
		Kind:          webhook.KindPayment,
		Reference:     evt.PaymentID,
		PaymentStatus: dibsyStatus(evt.Status),
	}, nil
}

func dibsyStatus(s string) intent.Status {
	switch s {
	case "open", "pending":
		return intent.StatusPending
	case "authorized", "processing":
		return intent.StatusProcessing
	case "succeeded", "paid":
		return intent.StatusCompleted
	case "refunded":
		return intent.StatusRefunded
	case "canceled", "expired":
		return intent.StatusCancelled
	case "failed":
		return intent.StatusFailed
	default:
		return intent.StatusPending
	}
}
