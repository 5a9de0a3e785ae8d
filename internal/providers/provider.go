// Package providers implements the uniform adapter layer over regional
// payment processors and shipping carriers. Each concrete adapter
// encapsulates one provider's wire format behind the same capability set, so
// the rest of the system never branches on provider-specific shapes.
package providers

import (
	"context"
	"time"

	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/domain/webhook"
)

// Provider names as they appear in region configuration.
const (
	Razorpay = "razorpay"
	Dibsy    = "dibsy"
	Telr     = "telr"
	Moyasar  = "moyasar"
	OmanNet  = "oman_net"
	Aramex   = "aramex"
)

// CreateRequest carries a normalized payment request to an adapter.
type CreateRequest struct {
	IntentID       string
	OrderID        string
	IdempotencyKey string
	AmountMinor    int64
	Currency       string
	CustomerName   string
	CustomerEmail  string
	Description    string
	CallbackURL    string
}

// RefundRequest carries a refund to an adapter. A zero AmountMinor means a
// full refund.
type RefundRequest struct {
	Reference   string // provider-side payment reference
	AmountMinor int64
	Currency    string
	Reason      string
}

// PaymentResponse is the normalized adapter result. Amount and currency always
// echo the request; adapters never substitute either.
type PaymentResponse struct {
	Provider    string
	Reference   string
	Status      intent.Status
	AmountMinor int64
	Currency    string
	RedirectURL string
	PaymentURL  string
	QRCode      string
	ExpiresAt   *time.Time
}

// WebhookResult is the canonical parse of a provider callback. Parsing is
// separated from side effects: adapters produce this value and the ingestion
// pipeline applies it.
type WebhookResult struct {
	EventID        string
	EventType      string
	Kind           webhook.Kind
	Reference      string // provider payment reference or tracking reference
	PaymentStatus  intent.Status
	ShipmentStatus shipment.Status
}

// PaymentProvider is the uniform capability set every payment adapter
// implements.
type PaymentProvider interface {
	// Name returns the provider name as used in region configuration.
	Name() string

	// CreatePayment opens a payment with the provider. Safe to call more than
	// once with the same idempotency key: adapters forward the key where the
	// provider honors it natively, and the idempotency guard enforces
	// exactly-once locally either way.
	CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResponse, error)

	// VerifyPayment confirms a payment's authenticity directly with the
	// provider, for redirect-based flows where the callback alone is not
	// trusted.
	VerifyPayment(ctx context.Context, reference, signature string) (*PaymentResponse, error)

	// RefundPayment refunds a completed payment, partially when an amount is
	// given.
	RefundPayment(ctx context.Context, req RefundRequest) (*PaymentResponse, error)

	// GetPaymentStatus polls the provider for the current payment state; the
	// reconciliation fallback for missed webhooks.
	GetPaymentStatus(ctx context.Context, reference string) (*PaymentResponse, error)

	// ValidateWebhook checks the callback signature in constant time.
	ValidateWebhook(payload []byte, signature string) bool

	// ProcessWebhook parses a provider payload into the canonical result. It
	// must not mutate any local state.
	ProcessWebhook(payload []byte) (*WebhookResult, error)
}

// ShipmentCreateRequest carries a normalized shipment booking to a carrier.
type ShipmentCreateRequest struct {
	ShipmentID    string
	OrderID       string
	Method        string
	CustomerName  string
	City          string
	Country       string
	AddressLine   string
	WeightGrams   int64
	PiecesCount   int
	DeclaredMinor int64
	Currency      string
}

// RateRequest asks a carrier for shipping rates.
type RateRequest struct {
	OriginCountry      string
	DestinationCountry string
	DestinationCity    string
	WeightGrams        int64
	Method             string
}

// Rate is one carrier quote.
type Rate struct {
	Method      string
	AmountMinor int64
	Currency    string
	EstimateDay int
}

// ShipmentResponse is the normalized carrier result.
type ShipmentResponse struct {
	Provider          string
	TrackingReference string
	Status            shipment.Status
	LabelURL          string
}

// TrackingResponse is a carrier tracking snapshot.
type TrackingResponse struct {
	Provider          string
	TrackingReference string
	Status            shipment.Status
	Description       string
	UpdatedAt         time.Time
}

// ShippingProvider is the uniform capability set every carrier adapter
// implements.
type ShippingProvider interface {
	Name() string
	CreateShipment(ctx context.Context, req ShipmentCreateRequest) (*ShipmentResponse, error)
	GetRates(ctx context.Context, req RateRequest) ([]Rate, error)
	GetTracking(ctx context.Context, trackingReference string) (*TrackingResponse, error)
	ValidateWebhook(payload []byte, signature string) bool
	ProcessWebhook(payload []byte) (*WebhookResult, error)
}
