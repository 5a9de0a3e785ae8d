package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
	"github.com/omnisouq/gateway/internal/domain/intent"
)

// allowedSortColumns is a whitelist of columns valid for ORDER BY.
var allowedSortColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"amount_minor": "amount_minor",
	"status":       "status",
}

const intentColumns = `id, order_id, idempotency_key, amount_minor, currency, region, provider,
	        status, provider_reference, redirect_url, last_error, version,
	        created_at, updated_at, completed_at`

// IntentRepository implements intent.Repository using PostgreSQL.
type IntentRepository struct {
	pool *pgxpool.Pool
}

// NewIntentRepository creates a new IntentRepository.
func NewIntentRepository(pool *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{pool: pool}
}

func (r *IntentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new intent. The unique index on idempotency_key is the
// atomic insert-if-absent primitive: a concurrent duplicate surfaces as
// ErrDuplicateIdempotencyKey, never as a second row.
func (r *IntentRepository) Create(ctx context.Context, p *intent.PaymentIntent) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_intents
		 (id, order_id, idempotency_key, amount_minor, currency, region, provider,
		  status, provider_reference, redirect_url, last_error, version,
		  created_at, updated_at, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.OrderID, p.IdempotencyKey, p.Amount.ValueMinor, p.Amount.Currency, p.Region, p.Provider,
		string(p.Status), p.ProviderReference, p.RedirectURL, p.LastError, p.Version,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// GetByID retrieves an intent by its ID.
func (r *IntentRepository) GetByID(ctx context.Context, id uuid.UUID) (*intent.PaymentIntent, error) {
	return r.scanIntent(r.db(ctx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = $1`, id))
}

// GetByIdempotencyKey retrieves an intent by idempotency key.
func (r *IntentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*intent.PaymentIntent, error) {
	return r.scanIntent(r.db(ctx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE idempotency_key = $1`, key))
}

// GetByProviderReference retrieves an intent by the provider-side reference,
// the lookup webhook deliveries arrive with.
func (r *IntentRepository) GetByProviderReference(ctx context.Context, provider, reference string) (*intent.PaymentIntent, error) {
	return r.scanIntent(r.db(ctx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents
		 WHERE provider = $1 AND provider_reference = $2`, provider, reference))
}

// Update persists a mutated intent. The WHERE clause pins the version read by
// the caller; zero rows affected means a concurrent writer won and the caller
// must re-read before retrying.
func (r *IntentRepository) Update(ctx context.Context, p *intent.PaymentIntent) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payment_intents SET
		  status=$1, provider_reference=$2, redirect_url=$3, last_error=$4,
		  version=version+1, updated_at=$5, completed_at=$6
		 WHERE id=$7 AND version=$8`,
		string(p.Status), p.ProviderReference, p.RedirectURL, p.LastError,
		p.UpdatedAt, p.CompletedAt, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a version conflict.
		var exists bool
		if err := r.db(ctx).QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM payment_intents WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check payment intent: %w", err)
		}
		if !exists {
			return domainErrors.ErrIntentNotFound
		}
		return domainErrors.ErrOptimisticLockFailed
	}
	p.Version++
	return nil
}

// List lists intents with optional filters.
func (r *IntentRepository) List(ctx context.Context, f intent.ListFilter) ([]*intent.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.OrderID != nil {
		query += fmt.Sprintf(" AND order_id = $%d", argIdx)
		args = append(args, *f.OrderID)
		argIdx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}
	if f.Provider != nil {
		query += fmt.Sprintf(" AND provider = $%d", argIdx)
		args = append(args, *f.Provider)
		argIdx++
	}
	if f.Region != nil {
		query += fmt.Sprintf(" AND region = $%d", argIdx)
		args = append(args, *f.Region)
		argIdx++
	}

	// Strict whitelist for sort column
	sortBy := "created_at"
	if col, ok := allowedSortColumns[f.SortBy]; ok {
		sortBy = col
	}
	sortOrder := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment intents: %w", err)
	}
	defer rows.Close()

	var intents []*intent.PaymentIntent
	for rows.Next() {
		p, err := r.scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, p)
	}
	return intents, rows.Err()
}

// ListStuck returns non-terminal intents last touched before the cutoff,
// oldest first, for the reconciler sweep.
func (r *IntentRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*intent.PaymentIntent, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+intentColumns+` FROM payment_intents
		 WHERE status IN ('pending', 'processing') AND updated_at < $1
		 ORDER BY updated_at ASC LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stuck intents: %w", err)
	}
	defer rows.Close()

	var intents []*intent.PaymentIntent
	for rows.Next() {
		p, err := r.scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, p)
	}
	return intents, rows.Err()
}

// AddEvent inserts a status-history event.
func (r *IntentRepository) AddEvent(ctx context.Context, event *intent.Event) error {
	data, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO payment_intent_events (id, intent_id, event_type, event_data, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		event.ID, event.IntentID, event.EventType, data,
	)
	if err != nil {
		return fmt.Errorf("insert intent event: %w", err)
	}
	return nil
}

// GetEvents retrieves the status history for an intent.
func (r *IntentRepository) GetEvents(ctx context.Context, intentID uuid.UUID) ([]*intent.Event, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, intent_id, event_type, event_data, created_at
		 FROM payment_intent_events WHERE intent_id = $1 ORDER BY created_at ASC`, intentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list intent events: %w", err)
	}
	defer rows.Close()

	var events []*intent.Event
	for rows.Next() {
		e := &intent.Event{}
		var data []byte
		if err := rows.Scan(&e.ID, &e.IntentID, &e.EventType, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(data, &e.EventData); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- scanning helpers ---

// scanIntent scans an intent from any source implementing the scanner interface.
func (r *IntentRepository) scanIntent(s scanner) (*intent.PaymentIntent, error) {
	p := &intent.PaymentIntent{}
	var status string
	err := s.Scan(
		&p.ID, &p.OrderID, &p.IdempotencyKey, &p.Amount.ValueMinor, &p.Amount.Currency, &p.Region, &p.Provider,
		&status, &p.ProviderReference, &p.RedirectURL, &p.LastError, &p.Version,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrIntentNotFound
		}
		return nil, fmt.Errorf("scan payment intent: %w", err)
	}
	p.Status = intent.Status(status)
	return p, nil
}
