package providers

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/domain/webhook"
)

// MockPaymentProvider is a controllable in-memory adapter for tests. Each
// operation counts its invocations and can be overridden per test; the
// defaults echo the request.
type MockPaymentProvider struct {
	ProviderName string

	CreateCalls atomic.Int64
	VerifyCalls atomic.Int64
	RefundCalls atomic.Int64
	StatusCalls atomic.Int64

	CreatePaymentFunc    func(ctx context.Context, req CreateRequest) (*PaymentResponse, error)
	VerifyPaymentFunc    func(ctx context.Context, reference, signature string) (*PaymentResponse, error)
	RefundPaymentFunc    func(ctx context.Context, req RefundRequest) (*PaymentResponse, error)
	GetPaymentStatusFunc func(ctx context.Context, reference string) (*PaymentResponse, error)
	ValidateWebhookFunc  func(payload []byte, signature string) bool
	ProcessWebhookFunc   func(payload []byte) (*WebhookResult, error)
}

// NewMockPaymentProvider creates a mock adapter with the given name.
func NewMockPaymentProvider(name string) *MockPaymentProvider {
	return &MockPaymentProvider{ProviderName: name}
}

func (m *MockPaymentProvider) Name() string { return m.ProviderName }

func (m *MockPaymentProvider) CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResponse, error) {
	m.CreateCalls.Add(1)
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, req)
	}
	return &PaymentResponse{
		Provider:    m.ProviderName,
		Reference:   m.ProviderName + "_" + uuid.New().String()[:8],
		Status:      intent.StatusPending,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}, nil
}

func (m *MockPaymentProvider) VerifyPayment(ctx context.Context, reference, signature string) (*PaymentResponse, error) {
	m.VerifyCalls.Add(1)
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, reference, signature)
	}
	return &PaymentResponse{Provider: m.ProviderName, Reference: reference, Status: intent.StatusCompleted}, nil
}

func (m *MockPaymentProvider) RefundPayment(ctx context.Context, req RefundRequest) (*PaymentResponse, error) {
	m.RefundCalls.Add(1)
	if m.RefundPaymentFunc != nil {
		return m.RefundPaymentFunc(ctx, req)
	}
	return &PaymentResponse{
		Provider:    m.ProviderName,
		Reference:   req.Reference,
		Status:      intent.StatusRefunded,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}, nil
}

func (m *MockPaymentProvider) GetPaymentStatus(ctx context.Context, reference string) (*PaymentResponse, error) {
	m.StatusCalls.Add(1)
	if m.GetPaymentStatusFunc != nil {
		return m.GetPaymentStatusFunc(ctx, reference)
	}
	return &PaymentResponse{Provider: m.ProviderName, Reference: reference, Status: intent.StatusPending}, nil
}

func (m *MockPaymentProvider) ValidateWebhook(payload []byte, signature string) bool {
	if m.ValidateWebhookFunc != nil {
		return m.ValidateWebhookFunc(payload, signature)
	}
	return true
}

func (m *MockPaymentProvider) ProcessWebhook(payload []byte) (*WebhookResult, error) {
	if m.ProcessWebhookFunc != nil {
		return m.ProcessWebhookFunc(payload)
	}
	return &WebhookResult{
		EventID:       uuid.New().String(),
		EventType:     "payment.completed",
		Kind:          webhook.KindPayment,
		PaymentStatus: intent.StatusCompleted,
	}, nil
}

// MockShippingProvider is the shipping counterpart of MockPaymentProvider.
type MockShippingProvider struct {
	ProviderName string

	CreateCalls   atomic.Int64
	TrackingCalls atomic.Int64

	CreateShipmentFunc  func(ctx context.Context, req ShipmentCreateRequest) (*ShipmentResponse, error)
	GetRatesFunc        func(ctx context.Context, req RateRequest) ([]Rate, error)
	GetTrackingFunc     func(ctx context.Context, trackingReference string) (*TrackingResponse, error)
	ValidateWebhookFunc func(payload []byte, signature string) bool
	ProcessWebhookFunc  func(payload []byte) (*WebhookResult, error)
}

// NewMockShippingProvider creates a mock carrier with the given name.
func NewMockShippingProvider(name string) *MockShippingProvider {
	return &MockShippingProvider{ProviderName: name}
}

func (m *MockShippingProvider) Name() string { return m.ProviderName }

func (m *MockShippingProvider) CreateShipment(ctx context.Context, req ShipmentCreateRequest) (*ShipmentResponse, error) {
	m.CreateCalls.Add(1)
	if m.CreateShipmentFunc != nil {
		return m.CreateShipmentFunc(ctx, req)
	}
	return &ShipmentResponse{
		Provider:          m.ProviderName,
		TrackingReference: m.ProviderName + "_wb_" + uuid.New().String()[:8],
		Status:            shipment.StatusCreated,
	}, nil
}

func (m *MockShippingProvider) GetRates(ctx context.Context, req RateRequest) ([]Rate, error) {
	if m.GetRatesFunc != nil {
		return m.GetRatesFunc(ctx, req)
	}
	return []Rate{{Method: req.Method, AmountMinor: 1500, Currency: "USD", EstimateDay: 3}}, nil
}

func (m *MockShippingProvider) GetTracking(ctx context.Context, trackingReference string) (*TrackingResponse, error) {
	m.TrackingCalls.Add(1)
	if m.GetTrackingFunc != nil {
		return m.GetTrackingFunc(ctx, trackingReference)
	}
	return &TrackingResponse{
		Provider:          m.ProviderName,
		TrackingReference: trackingReference,
		Status:            shipment.StatusInTransit,
	}, nil
}

func (m *MockShippingProvider) ValidateWebhook(payload []byte, signature string) bool {
	if m.ValidateWebhookFunc != nil {
		return m.ValidateWebhookFunc(payload, signature)
	}
	return true
}

func (m *MockShippingProvider) ProcessWebhook(payload []byte) (*WebhookResult, error) {
	if m.ProcessWebhookFunc != nil {
		return m.ProcessWebhookFunc(payload)
	}
	return &WebhookResult{
		EventID:        uuid.New().String(),
		EventType:      "shipment.delivered",
		Kind:           webhook.KindShipping,
		ShipmentStatus: shipment.StatusDelivered,
	}, nil
}
