package normalizer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
)

func validInput() PaymentInput {
	addr := Address{Line1: "Bldg 4, Street 820", City: "Doha", Country: "qa"}
	return PaymentInput{
		OrderID:        uuid.New().String(),
		IdempotencyKey: uuid.New().String(),
		AmountMinor:    15000,
		Currency:       "qar",
		Region:         "qa",
		Customer: Customer{
			ID:    uuid.New().String(),
			Email: "buyer@example.com",
			Name:  "A Buyer",
		},
		BillingAddress:  addr,
		ShippingAddress: addr,
		Items: []LineItem{
			{ID: "sku-1", Name: "Widget", Quantity: 3, UnitPriceMinor: 5000, TotalPriceMinor: 15000},
		},
	}
}

func TestNormalizePaymentCanonicalizesCasing(t *testing.T) {
	req, err := NormalizePayment(validInput())
	require.NoError(t, err)

	assert.Equal(t, "QAR", req.Currency)
	assert.Equal(t, "QA", req.Region)
	assert.Equal(t, "QA", req.BillingAddress.Country)
	assert.Equal(t, "QA", req.ShippingAddress.Country)
}

func TestNormalizePaymentAggregatesViolations(t *testing.T) {
	in := validInput()
	in.OrderID = "not-a-uuid"
	in.AmountMinor = 0
	in.Customer.Email = "not-an-email"

	_, err := NormalizePayment(in)
	require.Error(t, err)

	var violations domainErrors.ValidationErrors
	require.ErrorAs(t, err, &violations)
	assert.GreaterOrEqual(t, len(violations), 3)
}

func TestNormalizePaymentRejectsLineTotalMismatch(t *testing.T) {
	in := validInput()
	in.Items[0].TotalPriceMinor = 14999

	_, err := NormalizePayment(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items[0].total_price")
}

func TestNormalizePaymentRequiresItems(t *testing.T) {
	in := validInput()
	in.Items = nil

	_, err := NormalizePayment(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
}

func TestNormalizePaymentRejectsBadIdempotencyKey(t *testing.T) {
	in := validInput()
	in.IdempotencyKey = "retry-42"

	_, err := NormalizePayment(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idempotency_key")
}

func TestNormalizeShippingValid(t *testing.T) {
	req, err := NormalizeShipping(ShippingInput{
		OrderID: uuid.New().String(),
		Region:  "ae",
		Method:  "express",
		Customer: Customer{
			ID:    uuid.New().String(),
			Email: "buyer@example.com",
			Name:  "A Buyer",
		},
		ShippingAddress: Address{Line1: "Marina Walk 7", City: "Dubai", Country: "ae"},
		Items: []LineItem{
			{ID: "sku-2", Name: "Gadget", Quantity: 1, UnitPriceMinor: 9900, TotalPriceMinor: 9900},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "AE", req.Region)
	assert.Equal(t, "express", req.Method)
}

func TestNormalizeShippingRequiresMethod(t *testing.T) {
	_, err := NormalizeShipping(ShippingInput{
		OrderID: uuid.New().String(),
		Region:  "ae",
		Customer: Customer{
			ID:    uuid.New().String(),
			Email: "buyer@example.com",
			Name:  "A Buyer",
		},
		ShippingAddress: Address{Line1: "Marina Walk 7", City: "Dubai", Country: "ae"},
		Items: []LineItem{
			{ID: "sku-2", Name: "Gadget", Quantity: 1, UnitPriceMinor: 9900, TotalPriceMinor: 9900},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method")
}
