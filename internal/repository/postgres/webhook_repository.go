package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/webhook"
)

const webhookColumns = `id, event_id, provider, kind, event_type, raw_payload, signature,
	        received_at, processed, processing_attempts, last_error`

// WebhookRepository implements webhook.Repository using PostgreSQL. The
// unique index on (provider, event_id) makes redelivered events collapse onto
// their original row.
type WebhookRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a new WebhookRepository.
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

func (r *WebhookRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new webhook event record.
func (r *WebhookRepository) Create(ctx context.Context, e *webhook.Event) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO webhook_events
		 (id, event_id, provider, kind, event_type, raw_payload, signature,
		  received_at, processed, processing_attempts, last_error)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.EventID, e.Provider, string(e.Kind), e.EventType, e.RawPayload, e.Signature,
		e.ReceivedAt, e.Processed, e.ProcessingAttempts, e.LastError,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

// GetByProviderEventID retrieves an event by its provider-assigned id.
func (r *WebhookRepository) GetByProviderEventID(ctx context.Context, provider, eventID string) (*webhook.Event, error) {
	return r.scanEvent(r.db(ctx).QueryRow(ctx,
		`SELECT `+webhookColumns+` FROM webhook_events
		 WHERE provider = $1 AND event_id = $2`, provider, eventID))
}

// Update persists the processed flag, attempt counter and last error.
func (r *WebhookRepository) Update(ctx context.Context, e *webhook.Event) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE webhook_events SET
		  processed=$1, processing_attempts=$2, last_error=$3
		 WHERE id=$4`,
		e.Processed, e.ProcessingAttempts, e.LastError, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update webhook event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrWebhookEventNotFound
	}
	return nil
}

// ListUnprocessed returns events still eligible for a processing attempt,
// oldest first.
func (r *WebhookRepository) ListUnprocessed(ctx context.Context, maxAttempts, limit int) ([]*webhook.Event, error) {
	return r.listEvents(ctx,
		`SELECT `+webhookColumns+` FROM webhook_events
		 WHERE processed = false AND processing_attempts < $1
		 ORDER BY received_at ASC LIMIT $2`, maxAttempts, limit)
}

// ListExhausted returns events that burned through all attempts.
func (r *WebhookRepository) ListExhausted(ctx context.Context, maxAttempts, limit int) ([]*webhook.Event, error) {
	return r.listEvents(ctx,
		`SELECT `+webhookColumns+` FROM webhook_events
		 WHERE processed = false AND processing_attempts >= $1
		 ORDER BY received_at ASC LIMIT $2`, maxAttempts, limit)
}

func (r *WebhookRepository) listEvents(ctx context.Context, query string, args ...any) ([]*webhook.Event, error) {
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	var events []*webhook.Event
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// scanEvent scans a webhook event from any source implementing the scanner interface.
func (r *WebhookRepository) scanEvent(s scanner) (*webhook.Event, error) {
	e := &webhook.Event{}
	var kind string
	err := s.Scan(
		&e.ID, &e.EventID, &e.Provider, &kind, &e.EventType, &e.RawPayload, &e.Signature,
		&e.ReceivedAt, &e.Processed, &e.ProcessingAttempts, &e.LastError,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrWebhookEventNotFound
		}
		return nil, fmt.Errorf("scan webhook event: %w", err)
	}
	e.Kind = webhook.Kind(kind)
	return e, nil
}
