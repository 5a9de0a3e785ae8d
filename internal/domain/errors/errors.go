package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Region errors
	ErrRegionNotFound = errors.New("region not found")
	ErrRegionInactive = errors.New("region is inactive")

	// Payment intent errors
	ErrIntentNotFound         = errors.New("payment intent not found")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrStaleTransition        = errors.New("stale transition")
	ErrOptimisticLockFailed   = errors.New("optimistic lock conflict")

	// Shipment errors
	ErrShipmentNotFound = errors.New("shipment not found")

	// Provider errors
	ErrProviderNotFound    = errors.New("provider not registered")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("request rejected by provider")
	ErrProviderTimeout     = errors.New("provider request timeout")

	// Webhook errors
	ErrWebhookEventNotFound    = errors.New("webhook event not found")
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	ErrWebhookAttemptsExceeded = errors.New("webhook processing attempts exceeded")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ProviderError carries the provider name and the provider-side detail for a
// rejected operation. A rejection is terminal for the submitted request; the
// caller must correct the request rather than retry it verbatim.
type ProviderError struct {
	Provider string
	Message  string
	Details  map[string]any
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return ErrProviderRejected
}

// NewProviderError creates a new provider rejection error
func NewProviderError(provider, message string, details map[string]any) *ProviderError {
	return &ProviderError{Provider: provider, Message: message, Details: details}
}

// TimeoutError signals an unknown outcome: the provider may or may not have
// applied the operation. Callers must reconcile via a status poll before
// retrying the create path.
type TimeoutError struct {
	Provider  string
	TimeoutMs int64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out after %dms", e.Provider, e.TimeoutMs)
}

func (e *TimeoutError) Unwrap() error {
	return ErrProviderTimeout
}

// NewTimeoutError creates a new provider timeout error
func NewTimeoutError(provider string, timeoutMs int64) *TimeoutError {
	return &TimeoutError{Provider: provider, TimeoutMs: timeoutMs}
}

// ValidationError represents a single field-level validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors aggregates the full violation list for a request so the
// caller sees every bad field at once.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}
