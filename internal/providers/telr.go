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

// TelrConfig holds the credentials and endpoint for the Telr adapter.
type TelrConfig struct {
	BaseURL       string
	StoreID       string
	AuthKey       string
	WebhookSecret string
	Timeout       time.Duration
}

// TelrProvider serves the AE region. Hosted payment page: create returns a
// redirect URL, final status arrives via webhook or the check call.
type TelrProvider struct {
	cfg    TelrConfig
	client *restClient
}

// NewTelrProvider creates a Telr adapter.
func NewTelrProvider(cfg TelrConfig) *TelrProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://secure.telr.com"
	}
	p := &TelrProvider{cfg: cfg}
	p.client = newRESTClient(Telr, cfg.BaseURL, cfg.Timeout, nil)
	return p
}

func (p *TelrProvider) Name() string { return Telr }

type telrOrderResponse struct {
	Order struct {
		Ref    string `json:"ref"`
		URL    string `json:"url"`
		Status struct {
			Code int    `json:"code"`
			Text string `json:"text"`
		} `json:"status"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"order"`
	Error struct {
		Message string `json:"message"`
		Note    string `json:"note"`
	} `json:"error"`
}

// CreatePayment opens a hosted payment page order. The cart id is the
// idempotency key: Telr rejects a duplicate cart id instead of opening a
// second order.
func (p *TelrProvider) CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResponse, error) {
	body := map[string]any{
		"method":  "create",
		"store":   p.cfg.StoreID,
		"authkey": p.cfg.AuthKey,
		"order": map[string]any{
			"cartid":      req.IdempotencyKey,
			"test":        "0",
			"amount":      formatMinor(req.AmountMinor),
			"currency":    req.Currency,
			"description": req.Description,
		},
		"return": map[string]string{
			"authorised": req.CallbackURL,
			"declined":   req.CallbackURL,
			"cancelled":  req.CallbackURL,
		},
	}

	var resp telrOrderResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/gateway/order.json", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error.Message != "" {
		return nil, domainErrors.NewProviderError(Telr, resp.Error.Message, map[string]any{"note": resp.Error.Note})
	}

	return &PaymentResponse{
		Provider:    Telr,
		Reference:   resp.Order.Ref,
		Status:      intent.StatusPending,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		RedirectURL: resp.Order.URL,
	}, nil
}

// VerifyPayment re-checks the order after the hosted-page redirect; the
// redirect itself is never trusted standalone.
func (p *TelrProvider) VerifyPayment(ctx context.Context, reference, _ string) (*PaymentResponse, error) {
	return p.GetPaymentStatus(ctx, reference)
}

// RefundPayment issues a refund against a completed order.
func (p *TelrProvider) RefundPayment(ctx context.Context, req RefundRequest) (*PaymentResponse, error) {
	body := map[string]any{
		"method":  "refund",
		"store":   p.cfg.StoreID,
		"authkey": p.cfg.AuthKey,
		"order": map[string]any{
			"ref":      req.Reference,
			"amount":   formatMinor(req.AmountMinor),
			"currency": req.Currency,
		},
	}

	var resp telrOrderResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/gateway/order.json", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error.Message != "" {
		return nil, domainErrors.NewProviderError(Telr, resp.Error.Message, map[string]any{"note": resp.Error.Note})
	}

	return &PaymentResponse{
		Provider:    Telr,
		Reference:   req.Reference,
		Status:      intent.StatusRefunded,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}, nil
}

// GetPaymentStatus checks the order state.
func (p *TelrProvider) GetPaymentStatus(ctx context.Context, reference string) (*PaymentResponse, error) {
	body := map[string]any{
		"method":  "check",
		"store":   p.cfg.StoreID,
		"authkey": p.cfg.AuthKey,
		"order":   map[string]any{"ref": reference},
	}

	var resp telrOrderResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/gateway/order.json", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error.Message != "" {
		return nil, domainErrors.NewProviderError(Telr, resp.Error.Message, map[string]any{"note": resp.Error.Note})
	}

	return &PaymentResponse{
		Provider:  Telr,
		Reference: reference,
		Status:    telrStatus(resp.Order.Status.Code),
	}, nil
}

// ValidateWebhook verifies the hex HMAC-SHA256 over the raw body.
func (p *TelrProvider) ValidateWebhook(payload []byte, signature string) bool {
	return verifyHMACHex(p.cfg.WebhookSecret, payload, signature)
}

type telrWebhook struct {
	ID     string `json:"id"`
	Event  string `json:"event"`
	Order  string `json:"order_ref"`
	Status int    `json:"status_code"`
}

// ProcessWebhook parses a Telr event into the canonical result.
func (p *TelrProvider) ProcessWebhook(payload []byte) (*WebhookResult, error) {
	var evt telrWebhook
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("parse telr webhook: %w", err)
	}
	if evt.ID == "" || evt.Order == "" {
		return nil, domainErrors.NewValidationError("payload", "missing event or order reference")
	}

	return &WebhookResult{
		EventID:       evt.ID,
		EventType:     evt.Event,
		Kind:          webhook.KindPayment,
		Reference:     evt.Order,
		PaymentStatus: telrStatus(evt.Status),
	}, nil
}

// Telr status codes: 1=pending, 2=authorised, 3=paid, -1=expired, -2=cancelled,
// -3=declined.
func telrStatus(code int) intent.Status {
	switch code {
	case 1:
		return intent.StatusPending
	case 2:
		return intent.StatusProcessing
	case 3:
		return intent.StatusCompleted
	case -2:
		return intent.StatusCancelled
	case -1, -3:
		return intent.StatusFailed
	default:
		return intent.StatusPending
	}
}

func formatMinor(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
