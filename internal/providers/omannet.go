package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/webhook"
)

// OmanNetConfig holds the credentials and endpoint for the Oman Net adapter.
type OmanNetConfig struct {
	BaseURL       string
	MerchantID    string
	TerminalID    string
	SecureKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// OmanNetProvider serves the OM region. Redirect-based debit gateway: create
// returns a hosted redirect, and redirect results must always be re-verified
// against the gateway before being trusted.
type OmanNetProvider struct {
	cfg    OmanNetConfig
	client *restClient
}

// NewOmanNetProvider creates an Oman Net adapter.
func NewOmanNetProvider(cfg OmanNetConfig) *OmanNetProvider {
	p := &OmanNetProvider{cfg: cfg}
	p.client = newRESTClient(OmanNet, cfg.BaseURL, cfg.Timeout, nil)
	return p
}

func (p *OmanNetProvider) Name() string { return OmanNet }

type omanNetTxn struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	RedirectURL   string `json:"redirect_url"`
}

// CreatePayment registers a transaction and returns the gateway redirect. The
// track id is the idempotency key; the gateway refuses duplicate track ids.
func (p *OmanNetProvider) CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResponse, error) {
	form := url.Values{}
	form.Set("merchant_id", p.cfg.MerchantID)
	form.Set("terminal_id", p.cfg.TerminalID)
	form.Set("track_id", req.IdempotencyKey)
	form.Set("amount", formatMinor(req.AmountMinor))
	form.Set("currency", req.Currency)
	form.Set("response_url", req.CallbackURL)
	form.Set("udf1", req.OrderID)
	form.Set("signature", p.sign(req.IdempotencyKey, req.AmountMinor))

	var txn omanNetTxn
	if err := p.client.doForm(ctx, "/payment/init", form, &txn); err != nil {
		return nil, err
	}

	return &PaymentResponse{
		Provider:    OmanNet,
		Reference:   txn.TransactionID,
		Status:      intent.StatusPending,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		RedirectURL: txn.RedirectURL,
	}, nil
}

// VerifyPayment re-queries the gateway after a redirect; the redirect
// parameters alone never decide the outcome.
func (p *OmanNetProvider) VerifyPayment(ctx context.Context, reference, signature string) (*PaymentResponse, error) {
	if signature != "" && !verifyHMACHex(p.cfg.SecureKey, []byte(reference), signature) {
		return nil, domainErrors.ErrWebhookSignatureInvalid
	}
	return p.GetPaymentStatus(ctx, reference)
}

// RefundPayment reverses a completed debit.
func (p *OmanNetProvider) RefundPayment(ctx context.Context, req RefundRequest) (*PaymentResponse, error) {
	form := url.Values{}
	form.Set("merchant_id", p.cfg.MerchantID)
	form.Set("terminal_id", p.cfg.TerminalID)
	form.Set("transaction_id", req.Reference)
	if req.AmountMinor > 0 {
		form.Set("amount", formatMinor(req.AmountMinor))
	}
	form.Set("signature", p.sign(req.Reference, req.AmountMinor))

	var txn omanNetTxn
	if err := p.client.doForm(ctx, "/payment/reverse", form, &txn); err != nil {
		return nil, err
	}

	return &PaymentResponse{
		Provider:    OmanNet,
		Reference:   req.Reference,
		Status:      intent.StatusRefunded,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}, nil
}

// GetPaymentStatus queries a transaction by id.
func (p *OmanNetProvider) GetPaymentStatus(ctx context.Context, reference string) (*PaymentResponse, error) {
	form := url.Values{}
	form.Set("merchant_id", p.cfg.MerchantID)
	form.Set("terminal_id", p.cfg.TerminalID)
	form.Set("transaction_id", reference)
	form.Set("signature", p.sign(reference, 0))

	var txn omanNetTxn
	if err := p.client.doForm(ctx, "/payment/inquiry", form, &txn); err != nil {
		return nil, err
	}

	return &PaymentResponse{
		Provider:  OmanNet,
		Reference: txn.TransactionID,
		Status:    omanNetStatus(txn.Status),
	}, nil
}

// ValidateWebhook verifies the hex HMAC-SHA256 over the raw body.
func (p *OmanNetProvider) ValidateWebhook(payload []byte, signature string) bool {
	return verifyHMACHex(p.cfg.WebhookSecret, payload, signature)
}

type omanNetWebhook struct {
	EventID       string `json:"event_id"`
	EventType     string `json:"event_type"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// ProcessWebhook parses an Oman Net notification into the canonical result.
func (p *OmanNetProvider) ProcessWebhook(payload []byte) (*WebhookResult, error) {
	var evt omanNetWebhook
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("parse oman_net webhook: %w", err)
	}
	if evt.EventID == "" || evt.TransactionID == "" {
		return nil, domainErrors.NewValidationError("payload", "missing event or transaction id")
	}

	return &WebhookResult{
		EventID:       evt.EventID,
		EventType:     evt.EventType,
		Kind:          webhook.KindPayment,
		Reference:     evt.TransactionID,
		PaymentStatus: omanNetStatus(evt.Status),
	}, nil
}

func (p *OmanNetProvider) sign(reference string, amountMinor int64) string {
	payload := p.cfg.MerchantID + "|" + p.cfg.TerminalID + "|" + reference + "|" + strconv.FormatInt(amountMinor, 10)
	return fmt.Sprintf("%x", hmacSHA256(p.cfg.SecureKey, []byte(payload)))
}

func omanNetStatus(s string) intent.Status {
	switch s {
	case "INITIATED":
		return intent.StatusPending
	case "PENDING":
		return intent.StatusProcessing
	case "CAPTURED", "SUCCESS":
		return intent.StatusCompleted
	case "REVERSED":
		return intent.StatusRefunded
	case "CANCELLED":
		return intent.StatusCancelled
	case "FAILED", "DECLINED":
		return intent.StatusFailed
	default:
		return intent.StatusPending
	}
}
