package controller

import (
	"time"

	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/domain/webhook"
	"github.com/omnisouq/gateway/internal/normalizer"
	"github.com/omnisouq/gateway/internal/providers"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CustomerDTO identifies the paying customer.
type CustomerDTO struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

// AddressDTO is a billing or shipping address.
type AddressDTO struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country" validate:"required"`
}

// LineItemDTO is one order line in minor currency units.
type LineItemDTO struct {
	ID              string `json:"id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Quantity        int64  `json:"quantity" validate:"required"`
	UnitPriceMinor  int64  `json:"unit_price_minor" validate:"required"`
	TotalPriceMinor int64  `json:"total_price_minor" validate:"required"`
}

// CreatePaymentRequest is the inbound payment contract.
type CreatePaymentRequest struct {
	OrderID         string        `json:"order_id" validate:"required"`
	AmountMinor     int64         `json:"amount_minor" validate:"required"`
	Currency        string        `json:"currency" validate:"required"`
	Region          string        `json:"region" validate:"required"`
	Customer        CustomerDTO   `json:"customer" validate:"required"`
	BillingAddress  AddressDTO    `json:"billing_address" validate:"required"`
	ShippingAddress AddressDTO    `json:"shipping_address" validate:"required"`
	Items           []LineItemDTO `json:"items" validate:"required,min=1"`
}

// CreateShipmentRequest is the inbound shipment contract.
type CreateShipmentRequest struct {
	OrderID         string        `json:"order_id" validate:"required"`
	Region          string        `json:"region" validate:"required"`
	Method          string        `json:"method" validate:"required"`
	Customer        CustomerDTO   `json:"customer" validate:"required"`
	ShippingAddress AddressDTO    `json:"shipping_address" validate:"required"`
	Items           []LineItemDTO `json:"items" validate:"required,min=1"`
}

// RefundRequest is the inbound refund contract. A zero amount refunds the
// full captured amount.
type RefundRequest struct {
	AmountMinor int64 `json:"amount_minor"`
}

// VerifyRequest carries the signature material a redirect flow returns with.
type VerifyRequest struct {
	Signature string `json:"signature" validate:"required"`
}

// IntentResponse is the outbound payment intent representation.
type IntentResponse struct {
	ID                string     `json:"id"`
	OrderID           string     `json:"order_id"`
	IdempotencyKey    string     `json:"idempotency_key"`
	AmountMinor       int64      `json:"amount_minor"`
	Currency          string     `json:"currency"`
	Region            string     `json:"region"`
	Provider          string     `json:"provider"`
	Status            string     `json:"status"`
	ProviderReference *string    `json:"provider_reference,omitempty"`
	RedirectURL       *string    `json:"redirect_url,omitempty"`
	LastError         *string    `json:"last_error,omitempty"`
	Version           int        `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Replayed          bool       `json:"replayed,omitempty"`
}

// FromIntent converts a domain intent to its response form.
func FromIntent(p *intent.PaymentIntent) *IntentResponse {
	return &IntentResponse{
		ID:                p.ID.String(),
		OrderID:           p.OrderID.String(),
		IdempotencyKey:    p.IdempotencyKey,
		AmountMinor:       p.Amount.ValueMinor,
		Currency:          p.Amount.Currency,
		Region:            p.Region,
		Provider:          p.Provider,
		Status:            string(p.Status),
		ProviderReference: p.ProviderReference,
		RedirectURL:       p.RedirectURL,
		LastError:         p.LastError,
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		CompletedAt:       p.CompletedAt,
	}
}

// IntentEventResponse is one entry of an intent's status history.
type IntentEventResponse struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// FromIntentEvent converts a history event to its response form.
func FromIntentEvent(e *intent.Event) *IntentEventResponse {
	return &IntentEventResponse{
		ID:        e.ID.String(),
		EventType: e.EventType,
		EventData: e.EventData,
		CreatedAt: e.CreatedAt,
	}
}

// ShipmentResponse is the outbound shipment representation.
type ShipmentResponse struct {
	ID                string    `json:"id"`
	OrderID           string    `json:"order_id"`
	Region            string    `json:"region"`
	Provider          string    `json:"provider"`
	Method            string    `json:"method"`
	Status            string    `json:"status"`
	TrackingReference *string   `json:"tracking_reference,omitempty"`
	LastError         *string   `json:"last_error,omitempty"`
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// FromShipment converts a domain shipment to its response form.
func FromShipment(s *shipment.ShipmentRequest) *ShipmentResponse {
	return &ShipmentResponse{
		ID:                s.ID.String(),
		OrderID:           s.OrderID.String(),
		Region:            s.Region,
		Provider:          s.Provider,
		Method:            s.Method,
		Status:            string(s.Status),
		TrackingReference: s.TrackingReference,
		LastError:         s.LastError,
		Version:           s.Version,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// RateResponse is one shipping rate quote.
type RateResponse struct {
	Method      string `json:"method"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	EstimateDay int    `json:"estimate_days,omitempty"`
}

// FromRates converts rate quotes to their response form.
func FromRates(rates []providers.Rate) []RateResponse {
	out := make([]RateResponse, 0, len(rates))
	for _, r := range rates {
		out = append(out, RateResponse{
			Method:      r.Method,
			AmountMinor: r.AmountMinor,
			Currency:    r.Currency,
			EstimateDay: r.EstimateDay,
		})
	}
	return out
}

// WebhookEventResponse is the operator view of a parked webhook event.
type WebhookEventResponse struct {
	ID                 string    `json:"id"`
	EventID            string    `json:"event_id"`
	Provider           string    `json:"provider"`
	Kind               string    `json:"kind"`
	EventType          string    `json:"event_type"`
	ReceivedAt         time.Time `json:"received_at"`
	Processed          bool      `json:"processed"`
	ProcessingAttempts int       `json:"processing_attempts"`
	LastError          *string   `json:"last_error,omitempty"`
}

// FromWebhookEvent converts a webhook event to its response form.
func FromWebhookEvent(e *webhook.Event) *WebhookEventResponse {
	return &WebhookEventResponse{
		ID:                 e.ID.String(),
		EventID:            e.EventID,
		Provider:           e.Provider,
		Kind:               string(e.Kind),
		EventType:          e.EventType,
		ReceivedAt:         e.ReceivedAt,
		Processed:          e.Processed,
		ProcessingAttempts: e.ProcessingAttempts,
		LastError:          e.LastError,
	}
}

// toPaymentInput maps the HTTP contract onto the normalizer's input.
func (r CreatePaymentRequest) toPaymentInput(idempotencyKey string) normalizer.PaymentInput {
	return normalizer.PaymentInput{
		OrderID:         r.OrderID,
		IdempotencyKey:  idempotencyKey,
		AmountMinor:     r.AmountMinor,
		Currency:        r.Currency,
		Region:          r.Region,
		Customer:        normalizer.Customer(r.Customer),
		BillingAddress:  normalizer.Address(r.BillingAddress),
		ShippingAddress: normalizer.Address(r.ShippingAddress),
		Items:           toLineItems(r.Items),
	}
}

// toShippingInput maps the HTTP contract onto the normalizer's input.
func (r CreateShipmentRequest) toShippingInput() normalizer.ShippingInput {
	return normalizer.ShippingInput{
		OrderID:         r.OrderID,
		Region:          r.Region,
		Method:          r.Method,
		Customer:        normalizer.Customer(r.Customer),
		ShippingAddress: normalizer.Address(r.ShippingAddress),
		Items:           toLineItems(r.Items),
	}
}

func toLineItems(items []LineItemDTO) []normalizer.LineItem {
	out := make([]normalizer.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, normalizer.LineItem(it))
	}
	return out
}
