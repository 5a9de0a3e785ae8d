// Package testutil provides hand-rolled mocks and fixtures shared by
// package tests. Every mock stores rows in memory and exposes XxxFunc
// override fields for failure injection.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
	"github.com/omnisouq/gateway/internal/domain/shipment"
	"github.com/omnisouq/gateway/internal/domain/webhook"
)

// MockIntentRepository is an in-memory intent.Repository.
type MockIntentRepository struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*intent.PaymentIntent
	byKey  map[string]uuid.UUID
	events map[uuid.UUID][]*intent.Event

	CreateFunc func(ctx context.Context, p *intent.PaymentIntent) error
	UpdateFunc func(ctx context.Context, p *intent.PaymentIntent) error
}

// NewMockIntentRepository creates an empty intent repository mock.
func NewMockIntentRepository() *MockIntentRepository {
	return &MockIntentRepository{
		byID:   make(map[uuid.UUID]*intent.PaymentIntent),
		byKey:  make(map[string]uuid.UUID),
		events: make(map[uuid.UUID][]*intent.Event),
	}
}

func clone(p *intent.PaymentIntent) *intent.PaymentIntent {
	cp := *p
	return &cp
}

func (m *MockIntentRepository) Create(ctx context.Context, p *intent.PaymentIntent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[p.IdempotencyKey]; exists {
		return domainErrors.ErrDuplicateIdempotencyKey
	}
	m.byID[p.ID] = clone(p)
	m.byKey[p.IdempotencyKey] = p.ID
	return nil
}

func (m *MockIntentRepository) GetByID(ctx context.Context, id uuid.UUID) (*intent.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domainErrors.ErrIntentNotFound
	}
	return clone(p), nil
}

func (m *MockIntentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*intent.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, domainErrors.ErrIntentNotFound
	}
	return clone(m.byID[id]), nil
}

func (m *MockIntentRepository) GetByProviderReference(ctx context.Context, provider, reference string) (*intent.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Provider == provider && p.ProviderReference != nil && *p.ProviderReference == reference {
			return clone(p), nil
		}
	}
	return nil, domainErrors.ErrIntentNotFound
}

func (m *MockIntentRepository) Update(ctx context.Context, p *intent.PaymentIntent) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[p.ID]
	if !ok {
		return domainErrors.ErrIntentNotFound
	}
	if stored.Version != p.Version {
		return domainErrors.ErrOptimisticLockFailed
	}
	p.Version++
	m.byID[p.ID] = clone(p)
	return nil
}

func (m *MockIntentRepository) List(ctx context.Context, filter intent.ListFilter) ([]*intent.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*intent.PaymentIntent
	for _, p := range m.byID {
		if filter.OrderID != nil && p.OrderID != *filter.OrderID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Provider != nil && p.Provider != *filter.Provider {
			continue
		}
		if filter.Region != nil && p.Region != *filter.Region {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockIntentRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*intent.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*intent.PaymentIntent
	for _, p := range m.byID {
		if !p.IsTerminal() && p.UpdatedAt.Before(cutoff) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockIntentRepository) AddEvent(ctx context.Context, event *intent.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.IntentID] = append(m.events[event.IntentID], event)
	return nil
}

func (m *MockIntentRepository) GetEvents(ctx context.Context, intentID uuid.UUID) ([]*intent.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*intent.Event(nil), m.events[intentID]...), nil
}

// MockShipmentRepository is an in-memory shipment.Repository.
type MockShipmentRepository struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*shipment.ShipmentRequest
}

// NewMockShipmentRepository creates an empty shipment repository mock.
func NewMockShipmentRepository() *MockShipmentRepository {
	return &MockShipmentRepository{byID: make(map[uuid.UUID]*shipment.ShipmentRequest)}
}

func cloneShipment(s *shipment.ShipmentRequest) *shipment.ShipmentRequest {
	cp := *s
	return &cp
}

func (m *MockShipmentRepository) Create(ctx context.Context, s *shipment.ShipmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = cloneShipment(s)
	return nil
}

func (m *MockShipmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*shipment.ShipmentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domainErrors.ErrShipmentNotFound
	}
	return cloneShipment(s), nil
}

func (m *MockShipmentRepository) GetByTrackingReference(ctx context.Context, provider, reference string) (*shipment.ShipmentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.Provider == provider && s.TrackingReference != nil && *s.TrackingReference == reference {
			return cloneShipment(s), nil
		}
	}
	return nil, domainErrors.ErrShipmentNotFound
}

func (m *MockShipmentRepository) Update(ctx context.Context, s *shipment.ShipmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[s.ID]
	if !ok {
		return domainErrors.ErrShipmentNotFound
	}
	if stored.Version != s.Version {
		return domainErrors.ErrOptimisticLockFailed
	}
	s.Version++
	m.byID[s.ID] = cloneShipment(s)
	return nil
}

func (m *MockShipmentRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*shipment.ShipmentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*shipment.ShipmentRequest
	for _, s := range m.byID {
		if !s.IsTerminal() && s.UpdatedAt.Before(cutoff) {
			out = append(out, cloneShipment(s))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockWebhookRepository is an in-memory webhook.Repository keyed on
// (provider, event id).
type MockWebhookRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*webhook.Event
	byEvent map[string]uuid.UUID
}

// NewMockWebhookRepository creates an empty webhook repository mock.
func NewMockWebhookRepository() *MockWebhookRepository {
	return &MockWebhookRepository{
		byID:    make(map[uuid.UUID]*webhook.Event),
		byEvent: make(map[string]uuid.UUID),
	}
}

func cloneEvent(e *webhook.Event) *webhook.Event {
	cp := *e
	return &cp
}

func eventKey(provider, eventID string) string { return provider + "/" + eventID }

func (m *MockWebhookRepository) Create(ctx context.Context, e *webhook.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := eventKey(e.Provider, e.EventID)
	if _, exists := m.byEvent[key]; exists {
		return domainErrors.ErrDuplicateIdempotencyKey
	}
	m.byID[e.ID] = cloneEvent(e)
	m.byEvent[key] = e.ID
	return nil
}

func (m *MockWebhookRepository) GetByProviderEventID(ctx context.Context, provider, eventID string) (*webhook.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEvent[eventKey(provider, eventID)]
	if !ok {
		return nil, domainErrors.ErrWebhookEventNotFound
	}
	return cloneEvent(m.byID[id]), nil
}

func (m *MockWebhookRepository) Update(ctx context.Context, e *webhook.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[e.ID]; !ok {
		return domainErrors.ErrWebhookEventNotFound
	}
	m.byID[e.ID] = cloneEvent(e)
	return nil
}

func (m *MockWebhookRepository) ListUnprocessed(ctx context.Context, maxAttempts, limit int) ([]*webhook.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*webhook.Event
	for _, e := range m.byID {
		if !e.Processed && e.ProcessingAttempts < maxAttempts {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockWebhookRepository) ListExhausted(ctx context.Context, maxAttempts, limit int) ([]*webhook.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*webhook.Event
	for _, e := range m.byID {
		if !e.Processed && e.ProcessingAttempts >= maxAttempts {
			out = append(out, cloneEvent(e))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockLocker serializes callers per key with in-process mutexes, mirroring
// the redis lock semantics closely enough for tests.
type MockLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	AcquireCalls int
	WithLockFunc func(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// NewMockLocker creates a per-key in-process locker.
func NewMockLocker() *MockLocker {
	return &MockLocker{locks: make(map[string]*sync.Mutex)}
}

func (m *MockLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if m.WithLockFunc != nil {
		return m.WithLockFunc(ctx, key, fn)
	}
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.AcquireCalls++
	m.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

// MockTxManager runs the callback without a real transaction.
type MockTxManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewMockTxManager creates a passthrough transaction manager.
func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

func (m *MockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// MockOrderNotifier records order lifecycle callbacks.
type MockOrderNotifier struct {
	mu     sync.Mutex
	Paid   []uuid.UUID
	Failed []uuid.UUID

	MarkPaidFunc   func(ctx context.Context, orderID uuid.UUID, providerReference string) error
	MarkFailedFunc func(ctx context.Context, orderID uuid.UUID, reason string) error
}

// NewMockOrderNotifier creates an order notifier mock.
func NewMockOrderNotifier() *MockOrderNotifier {
	return &MockOrderNotifier{}
}

func (m *MockOrderNotifier) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, providerReference string) error {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, orderID, providerReference)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Paid = append(m.Paid, orderID)
	return nil
}

func (m *MockOrderNotifier) MarkOrderPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, orderID, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failed = append(m.Failed, orderID)
	return nil
}

// PaidCount returns how many paid callbacks were recorded.
func (m *MockOrderNotifier) PaidCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Paid)
}

// FailedCount returns how many failure callbacks were recorded.
func (m *MockOrderNotifier) FailedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Failed)
}
