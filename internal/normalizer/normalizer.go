// Package normalizer validates and shapes inbound payment and shipping
// requests into canonical values before any provider is contacted. It is
// side-effect free: a request either comes out canonical or fails with the
// full field-level violation list.
package normalizer

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
)

var validate = validator.New()

// Customer identifies the paying customer.
type Customer struct {
	ID    string `validate:"required,uuid4"`
	Email string `validate:"required,email"`
	Name  string `validate:"required"`
}

// Address is a billing or shipping address.
type Address struct {
	Line1      string `validate:"required"`
	Line2      string `validate:"omitempty"`
	City       string `validate:"required"`
	State      string `validate:"omitempty"`
	PostalCode string `validate:"omitempty"`
	Country    string `validate:"required,iso3166_1_alpha2"`
}

// LineItem is one order line. UnitPriceMinor and TotalPriceMinor are in the
// smallest currency unit.
type LineItem struct {
	ID              string `validate:"required"`
	Name            string `validate:"required"`
	Quantity        int64  `validate:"required,gt=0"`
	UnitPriceMinor  int64  `validate:"required,gt=0"`
	TotalPriceMinor int64  `validate:"required,gt=0"`
}

// PaymentRequest is the canonical, validated payment request handed to the
// idempotency guard and adapter router.
type PaymentRequest struct {
	OrderID         uuid.UUID
	IdempotencyKey  uuid.UUID
	AmountMinor     int64  `validate:"required,gt=0"`
	Currency        string `validate:"required,iso4217"`
	Region          string `validate:"required,len=2"`
	Customer        Customer
	BillingAddress  Address
	ShippingAddress Address
	Items           []LineItem `validate:"required,min=1,dive"`
}

// ShippingRequest is the canonical, validated shipment request.
type ShippingRequest struct {
	OrderID         uuid.UUID
	Region          string `validate:"required,len=2"`
	Method          string `validate:"required"`
	Customer        Customer
	ShippingAddress Address
	Items           []LineItem `validate:"required,min=1,dive"`
}

// PaymentInput is the raw inbound payment contract from checkout collaborators.
type PaymentInput struct {
	OrderID         string
	IdempotencyKey  string
	AmountMinor     int64
	Currency        string
	Region          string
	Customer        Customer
	BillingAddress  Address
	ShippingAddress Address
	Items           []LineItem
}

// ShippingInput is the raw inbound shipping contract.
type ShippingInput struct {
	OrderID         string
	Region          string
	Method          string
	Customer        Customer
	ShippingAddress Address
	Items           []LineItem
}

// NormalizePayment validates the inbound request and returns its canonical
// form, or the aggregated violation list.
func NormalizePayment(in PaymentInput) (*PaymentRequest, error) {
	var violations domainErrors.ValidationErrors

	orderID, err := uuid.Parse(in.OrderID)
	if err != nil {
		violations = append(violations, domainErrors.NewValidationError("order_id", "must be a UUID"))
	}
	key, err := uuid.Parse(in.IdempotencyKey)
	if err != nil {
		violations = append(violations, domainErrors.NewValidationError("idempotency_key", "must be a UUID"))
	}

	req := &PaymentRequest{
		OrderID:         orderID,
		IdempotencyKey:  key,
		AmountMinor:     in.AmountMinor,
		Currency:        strings.ToUpper(in.Currency),
		Region:          strings.ToUpper(in.Region),
		Customer:        in.Customer,
		BillingAddress:  normalizeAddress(in.BillingAddress),
		ShippingAddress: normalizeAddress(in.ShippingAddress),
		Items:           in.Items,
	}

	violations = append(violations, structViolations(req)...)
	violations = append(violations, itemViolations(in.Items)...)

	if len(violations) > 0 {
		return nil, violations
	}
	return req, nil
}

// NormalizeShipping validates the inbound shipping request and returns its
// canonical form.
func NormalizeShipping(in ShippingInput) (*ShippingRequest, error) {
	var violations domainErrors.ValidationErrors

	orderID, err := uuid.Parse(in.OrderID)
	if err != nil {
		violations = append(violations, domainErrors.NewValidationError("order_id", "must be a UUID"))
	}

	req := &ShippingRequest{
		OrderID:         orderID,
		Region:          strings.ToUpper(in.Region),
		Method:          in.Method,
		Customer:        in.Customer,
		ShippingAddress: normalizeAddress(in.ShippingAddress),
		Items:           in.Items,
	}

	violations = append(violations, structViolations(req)...)
	violations = append(violations, itemViolations(in.Items)...)

	if len(violations) > 0 {
		return nil, violations
	}
	return req, nil
}

func normalizeAddress(a Address) Address {
	a.Country = strings.ToUpper(a.Country)
	return a
}

func structViolations(v any) domainErrors.ValidationErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return domainErrors.ValidationErrors{domainErrors.NewValidationError("request", err.Error())}
	}
	out := make(domainErrors.ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		out = append(out, domainErrors.NewValidationError(
			strings.ToLower(fe.Namespace()),
			fe.Tag()+" validation failed",
		))
	}
	return out
}

// itemViolations enforces unitPrice * quantity == totalPrice per line. This is
// a correctness gate: a mismatch means the caller computed totals wrong and
// the request must not reach a provider.
func itemViolations(items []LineItem) domainErrors.ValidationErrors {
	var out domainErrors.ValidationErrors
	for i, item := range items {
		if item.Quantity <= 0 || item.UnitPriceMinor <= 0 {
			continue // covered by struct tags
		}
		if item.UnitPriceMinor*item.Quantity != item.TotalPriceMinor {
			out = append(out, domainErrors.NewValidationError(
				itemField(i, "total_price"),
				"does not equal unit_price * quantity",
			))
		}
	}
	return out
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}
