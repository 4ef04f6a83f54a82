package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "hiddystays/internal/app/outbox"
)

// Outbox writes records in the same transaction as the aggregates that
// produced them. Delivery is left to the worker, so Flush is a no-op.
type Outbox struct {
	Pool *pgxpool.Pool
	// ClaimTimeout returns records stuck in CLAIMED to the queue.
	ClaimTimeout time.Duration
}

func (o *Outbox) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	var q querier = o.Pool
	if tx, ok := txFrom(ctx); ok {
		q = tx
	}
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO outbox_events (id, name, payload, occurred_at, aggregate, headers)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Name, rec.Payload, rec.OccurredAt, rec.Aggregate, headers)
	if err != nil {
		return fmt.Errorf("outbox add: %w", err)
	}
	return nil
}

func (o *Outbox) Flush(context.Context) error {
	return nil
}

// Claim locks the oldest due record with SKIP LOCKED so several workers can
// drain the table side by side.
func (o *Outbox) Claim(ctx context.Context, workerID string) (*appoutbox.StoredRecord, error) {
	timeout := o.ClaimTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	var (
		rec     appoutbox.StoredRecord
		headers []byte
	)
	err := o.Pool.QueryRow(ctx, `
		UPDATE outbox_events SET state = 'CLAIMED', claimed_by = $1, claimed_at = now()
		WHERE id = (
			SELECT id FROM outbox_events
			WHERE (state IN ('NEW', 'FAILED') AND next_attempt_at <= now())
			   OR (state = 'CLAIMED' AND claimed_at <= now() - $2::interval)
			ORDER BY next_attempt_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`,
		workerID, timeout,
	).Scan(&rec.ID, &rec.Name, &rec.Payload, &rec.OccurredAt, &rec.Aggregate, &headers, &rec.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("outbox claim: %w", err)
	}
	rec.Headers = map[string]string{}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &rec.Headers); err != nil {
			return nil, fmt.Errorf("outbox headers: %w", err)
		}
	}
	return &rec, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	_, err := o.Pool.Exec(ctx, `UPDATE outbox_events SET state = 'SENT', sent_at = now() WHERE id = $1`, id)
	return err
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := o.Pool.Exec(ctx, `
		UPDATE outbox_events
		SET state = 'FAILED', attempts = attempts + 1, next_attempt_at = $2, last_error = $3
		WHERE id = $1`, id, next, errMsg)
	return err
}
