// Package orders delivers payment outcome callbacks to the order service.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/omnisouq/gateway/internal/infrastructure/config"
	"github.com/omnisouq/gateway/pkg/retry"
)

// HTTPNotifier posts payment outcomes to the order service. Deliveries are
// retried with backoff; a persistent failure bubbles up so the caller's own
// redelivery (webhook retries, reconciler sweeps) takes over.
type HTTPNotifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPNotifier creates a notifier for the configured order service.
func NewHTTPNotifier(cfg config.OrdersConfig, logger zerolog.Logger) *HTTPNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type paymentStatusPayload struct {
	Status            string `json:"status"`
	ProviderReference string `json:"provider_reference,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// MarkOrderPaid reports a captured payment.
func (n *HTTPNotifier) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, providerReference string) error {
	return n.post(ctx, orderID, paymentStatusPayload{Status: "paid", ProviderReference: providerReference})
}

// MarkOrderPaymentFailed reports a terminally failed payment.
func (n *HTTPNotifier) MarkOrderPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	return n.post(ctx, orderID, paymentStatusPayload{Status: "payment_failed", Reason: reason})
}

func (n *HTTPNotifier) post(ctx context.Context, orderID uuid.UUID, payload paymentStatusPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal order callback: %w", err)
	}
	url := n.baseURL + "/internal/orders/" + orderID.String() + "/payment-status"

	return retry.Do(ctx, retry.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if n.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+n.apiKey)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("order callback: %w", err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusConflict:
			// The order already holds this outcome. Idempotent replay.
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return retry.Unrecoverable(fmt.Errorf("order callback rejected with status %d", resp.StatusCode))
		default:
			return fmt.Errorf("order callback failed with status %d", resp.StatusCode)
		}
	})
}

// LogNotifier records outcomes without an order service attached. Used in
// development when orders.base_url is unset.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, providerReference string) error {
	n.logger.Info().
		Str("order_id", orderID.String()).
		Str("provider_reference", providerReference).
		Msg("order marked paid")
	return nil
}

func (n *LogNotifier) MarkOrderPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	n.logger.Warn().
		Str("order_id", orderID.String()).
		Str("reason", reason).
		Msg("order marked payment failed")
	return nil
}
