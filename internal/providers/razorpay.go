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

// RazorpayConfig holds the credentials and endpoint for the Razorpay adapter.
type RazorpayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

// RazorpayProvider serves the IN region. Orders API with basic auth; webhooks
// signed with a hex HMAC-SHA256 over the raw body.
type RazorpayProvider struct {
	cfg    RazorpayConfig
	client *restClient
}

// NewRazorpayProvider creates a Razorpay adapter.
func NewRazorpayProvider(cfg RazorpayConfig) *RazorpayProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com"
	}
	p := &RazorpayProvider{cfg: cfg}
	p.client = newRESTClient(Razorpay, cfg.BaseURL, cfg.Timeout, func(r *http.Request) {
		r.SetBasicAuth(cfg.KeyID, cfg.KeySecret)
	})
	return p
}

func (p *RazorpayProvider) Name() string { return Razorpay }

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreatePayment opens a Razorpay order. The idempotency key rides in the
// receipt field, which Razorpay enforces as unique per order, so a replayed
// create cannot open a second charge on their side.
func (p *RazorpayProvider) CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResponse, error) {
	body := map[string]any{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.IdempotencyKey,
		"notes": map[string]string{
			"order_id":  req.OrderID,
			"intent_id": req.IntentID,
		},
	}

	var order razorpayOrder
	if err := p.client.doJSON(ctx, http.MethodPost, "/v1/orders", body, &order); err != nil {
		return nil, err
	}

	return &PaymentResponse{
		Provider:    Razorpay,
		Reference:   order.ID,
		Status:      intent.StatusPending,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}, nil
}

// VerifyPayment checks the checkout callback signature
// (HMAC-SHA256(order_id|payment_id)) and confirms status with the API.
// signature has the form "<payment_id>|<hex signature>".
func (p *RazorpayProvider) VerifyPayment(ctx context.Context, reference, signature string) (*PaymentResponse, error) {
	paymentID, sig, ok := splitPair(signature)
	if !ok {
		return nil, domainErrors.ErrWebhookSignatureInvalid
	}
	if !verifyHMACHex(p.cfg.KeySecret, []byte(reference+"|"+paymentID), sig) {
		return nil, domainErrors.ErrWebhookSignatureInvalid
	}

	var payment razorpayPayment
	if err := p.client.doJSON(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return p.toResponse(payment), nil
}

// RefundPayment issues a refund against a captured payment.
func (p *RazorpayProvider) RefundPayment(ctx context.Context, req RefundRequest) (*PaymentResponse, error) {
	body := map[string]any{}
	if req.AmountMinor > 0 {
		body["amount"] = req.AmountMinor
	}
	if req.Reason != "" {
		body["notes"] = map[string]string{"reason": req.Reason}
	}

	var refund struct {
		ID        string `json:"id"`
		PaymentID string `json:"payment_id"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
	}
	if err := p.client.doJSON(ctx, http.MethodPost, "/v1/payments/"+req.Reference+"/refund", body, &refund); err != nil {
		return nil, err
	}

	return &PaymentResponse{
		Provider:    Razorpay,
		Reference:   req.Reference,
		Status:      intent.StatusRefunded,
		AmountMinor: refund.Amount,
		Currency:    refund.Currency,
	}, nil
}

// GetPaymentStatus polls a payment by reference. Order references are resolved
// through the order's payment list.
func (p *RazorpayProvider) GetPaymentStatus(ctx context.Context, reference string) (*PaymentResponse, error) {
	if len(reference) > 6 && reference[:6] == "order_" {
		var list struct {
			Items []razorpayPayment `json:"items"`
		}
		if err := p.client.doJSON(ctx, http.MethodGet, "/v1/orders/"+reference+"/payments", nil, &list); err != nil {
			return nil, err
		}
		if len(list.Items) == 0 {
			return &PaymentResponse{Provider: Razorpay, Reference: reference, Status: intent.StatusPending}, nil
		}
		// Most recent attempt decides.
		return p.toResponse(list.Items[len(list.Items)-1]), nil
	}

	var payment razorpayPayment
	if err := p.client.doJSON(ctx, http.MethodGet, "/v1/payments/"+reference, nil, &payment); err != nil {
		return nil, err
	}
	return p.toResponse(payment), nil
}

// ValidateWebhook verifies the X-Razorpay-Signature HMAC over the raw body.
func (p *RazorpayProvider) ValidateWebhook(payload []byte, signature string) bool {
	return verifyHMACHex(p.cfg.WebhookSecret, payload, signature)
}

type razorpayWebhook struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ProcessWebhook parses a Razorpay event into the canonical result.
func (p *RazorpayProvider) ProcessWebhook(payload []byte) (*WebhookResult, error) {
	var evt razorpayWebhook
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("parse razorpay webhook: %w", err)
	}
	entity := evt.Payload.Payment.Entity
	if evt.ID == "" || entity.ID == "" {
		return nil, domainErrors.NewValidationError("payload", "missing event or payment id")
	}

	reference := entity.OrderID
	if reference == "" {
		reference = entity.ID
	}

	return &WebhookResult{
		EventID:       evt.ID,
		EventType:     evt.Event,
		Kind:          webhook.KindPayment,
		Reference:     reference,
		PaymentStatus: razorpayStatus(entity.Status),
	}, nil
}

func (p *RazorpayProvider) toResponse(payment razorpayPayment) *PaymentResponse {
	reference := payment.OrderID
	if reference == "" {
		reference = payment.ID
	}
	return &PaymentResponse{
		Provider:    Razorpay,
		Reference:   reference,
		Status:      razorpayStatus(payment.Status),
		AmountMinor: payment.Amount,
		Currency:    payment.Currency,
	}
}

func razorpayStatus(s string) intent.Status {
	switch s {
	case "created":
		return intent.StatusPending
	case "authorized":
		return intent.StatusProcessing
	case "captured":
		return intent.StatusCompleted
	case "refunded":
		return intent.StatusRefunded
	case "failed":
		return intent.StatusFailed
	default:
		return intent.StatusPending
	}
}

func splitPair(s string) (left, right string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			return s[:i], s[i+1:], i > 0 && i < len(s)-1
		}
	}
	return "", "", false
}
