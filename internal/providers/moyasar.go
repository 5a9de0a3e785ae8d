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

// MoyasarConfig holds the credentials and endpoint for the Moyasar adapter.
type MoyasarConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// MoyasarProvider serves the SA region. Basic auth with the secret key as
// username; callbacks carry a shared secret token rather than a payload
// signature.
type MoyasarProvider struct {
	cfg    MoyasarConfig
	client *restClient
}

// NewMoyasarProvider creates a Moyasar adapter.
func NewMoyasarProvider(cfg MoyasarConfig) *MoyasarProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.moyasar.com"
	}
	p := &MoyasarProvider{cfg: cfg}
	p.client = newRESTClient(Moyasar, cfg.BaseURL, cfg.Timeout, func(r *http.Request) {
		r.SetBasicAuth(cfg.SecretKey, "")
	})
	return p
}

func (p *MoyasarProvider) Name() string { return Moyasar }

type moyasarPayment struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Source   struct {
		Type           string `json:"type"`
		TransactionURL string `json:"transaction_url"`
	} `json:"source"`
}

// CreatePayment opens a Moyasar payment. Moyasar has no native idempotency
// key; the guard enforces exactly-once locally, and the order id travels in
// metadata for reconciliation.
func (p *MoyasarProvider) CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResponse, error) {
	body := map[string]any{
		"amount":       req.AmountMinor,
		"currency":     req.Currency,
		"description":  req.Description,
		"callback_url": req.CallbackURL,
		"metadata": map[string]string{
			"order_id":        req.OrderID,
			"intent_id":       req.IntentID,
			"idempotency_key": req.IdempotencyKey,
		},
	}

	var payment moyasarPayment
	if err := p.client.doJSON(ctx, http.MethodPost, "/v1/payments", body, &payment); err != nil {
		return nil, err
	}

	return &PaymentResponse{
		Provider:    Moyasar,
		Reference:   payment.ID,
		Status:      moyasarStatus(payment.Status),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		PaymentURL:  payment.Source.TransactionURL,
	}, nil
}

// VerifyPayment fetches the payment directly; the signature argument is the
// callback token, checked in constant time before trusting the redirect.
func (p *MoyasarProvider) VerifyPayment(ctx context.Context, reference, signature string) (*PaymentResponse, error) {
	if signature != "" && !constantTimeTokenEqual(p.cfg.WebhookSecret, signature) {
		return nil, domainErrors.ErrWebhookSignatureInvalid
	}
	return p.GetPaymentStatus(ctx, reference)
}

// RefundPayment refunds a paid payment, partially when an amount is given.
func (p *MoyasarProvider) RefundPayment(ctx context.Context, req RefundRequest) (*PaymentResponse, error) {
	body := map[string]any{}
	if req.AmountMinor > 0 {
		body["amount"] = req.AmountMinor
	}

	var payment moyasarPayment
	if err := p.client.doJSON(ctx, http.MethodPost, "/v1/payments/"+req.Reference+"/refund", body, &payment); err != nil {
		return nil, err
	}

	return &PaymentResponse{
		Provider:    Moyasar,
		Reference:   payment.ID,
		Status:      intent.StatusRefunded,
		AmountMinor: payment.Amount,
		Currency:    payment.Currency,
	}, nil
}

// GetPaymentStatus polls a payment by id.
func (p *MoyasarProvider) GetPaymentStatus(ctx context.Context, reference string) (*PaymentResponse, error) {
	var payment moyasarPayment
	if err := p.client.doJSON(ctx, http.MethodGet, "/v1/payments/"+reference, nil, &payment); err != nil {
		return nil, err
	}
	return &PaymentResponse{
		Provider:    Moyasar,
		Reference:   payment.ID,
		Status:      moyasarStatus(payment.Status),
		AmountMinor: payment.Amount,
		Currency:    payment.Currency,
	}, nil
}

// ValidateWebhook compares the shared secret token in constant time.
func (p *MoyasarProvider) ValidateWebhook(payload []byte, signature string) bool {
	return constantTimeTokenEqual(p.cfg.WebhookSecret, signature)
}

type moyasarWebhook struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"data"`
}

// ProcessWebhook parses a Moyasar event into the canonical result.
func (p *MoyasarProvider) ProcessWebhook(payload []byte) (*WebhookResult, error) {
	var evt moyasarWebhook
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("parse moyasar webhook: %w", err)
	}
	if evt.ID == "" || evt.Data.ID == "" {
		return nil, domainErrors.NewValidationError("payload", "missing event or payment id")
	}

	return &WebhookResult{
		EventID:       evt.ID,
		EventType:     evt.Type,
		Kind:          webhook.KindPayment,
		Reference:     evt.Data.ID,
		PaymentStatus: moyasarStatus(evt.Data.Status),
	}, nil
}

func moyasarStatus(s string) intent.Status {
	switch s {
	case "initiated":
		return intent.StatusPending
	case "authorized":
		return intent.StatusProcessing
	case "paid", "captured":
		return intent.StatusCompleted
	case "refunded":
		return intent.StatusRefunded
	case "failed", "voided":
		return intent.StatusFailed
	default:
		return intent.StatusPending
	}
}
