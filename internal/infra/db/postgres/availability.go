package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hiddystays/internal/domain/availability"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
)

type availabilityRepo struct {
	q querier
}

const blockColumns = `b.id, b.property_id, b.start_date, b.end_date, b.reason, b.price_override_cents, b.created_at, p.currency`

func scanBlock(row pgx.Row) (*availability.BlockedRange, error) {
	var (
		b        availability.BlockedRange
		override *int64
		currency string
	)
	if err := row.Scan(&b.ID, &b.PropertyID, &b.Span.Start, &b.Span.End, &b.Reason, &override, &b.CreatedAt, &currency); err != nil {
		return nil, err
	}
	if override != nil {
		b.PriceOverride = &money.Money{Amount: *override, Currency: currency}
	}
	return &b, nil
}

func (r availabilityRepo) Blocks(ctx context.Context, id properties.PropertyID, window daterange.Span) ([]*availability.BlockedRange, error) {
	rows, err := r.q.Query(ctx, `SELECT `+blockColumns+`
		FROM blocked_ranges b JOIN properties p ON p.id = b.property_id
		WHERE b.property_id = $1 AND b.start_date <= $3 AND b.end_date >= $2
		ORDER BY b.created_at, b.id`, id, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()
	var out []*availability.BlockedRange
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r availabilityRepo) BlockByID(ctx context.Context, id availability.BlockID) (*availability.BlockedRange, error) {
	b, err := scanBlock(r.q.QueryRow(ctx, `SELECT `+blockColumns+`
		FROM blocked_ranges b JOIN properties p ON p.id = b.property_id WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, availability.ErrBlockNotFound
		}
		return nil, fmt.Errorf("get block: %w", err)
	}
	return b, nil
}

func (r availabilityRepo) SaveBlock(ctx context.Context, b *availability.BlockedRange) error {
	var override *int64
	if b.PriceOverride != nil {
		override = &b.PriceOverride.Amount
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO blocked_ranges (id, property_id, start_date, end_date, reason, price_override_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			reason = EXCLUDED.reason,
			price_override_cents = EXCLUDED.price_override_cents`,
		b.ID, b.PropertyID, b.Span.Start, b.Span.End, b.Reason, override, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("save block: %w", err)
	}
	return nil
}

func (r availabilityRepo) DeleteBlock(ctx context.Context, id availability.BlockID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM blocked_ranges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return availability.ErrBlockNotFound
	}
	return nil
}

func (r availabilityRepo) Records(ctx context.Context, id properties.PropertyID, window daterange.Span) ([]availability.Record, error) {
	rows, err := r.q.Query(ctx, `
		SELECT r.property_id, r.date, r.available, r.custom_price_cents, r.min_nights, r.max_nights, r.updated_at, p.currency
		FROM availability_records r JOIN properties p ON p.id = r.property_id
		WHERE r.property_id = $1 AND r.date BETWEEN $2 AND $3
		ORDER BY r.date`, id, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("list availability records: %w", err)
	}
	defer rows.Close()
	var out []availability.Record
	for rows.Next() {
		var (
			rec      availability.Record
			price    *int64
			currency string
		)
		if err := rows.Scan(&rec.PropertyID, &rec.Date, &rec.Available, &price, &rec.MinNights, &rec.MaxNights, &rec.UpdatedAt, &currency); err != nil {
			return nil, fmt.Errorf("scan availability record: %w", err)
		}
		if price != nil {
			rec.CustomPrice = &money.Money{Amount: *price, Currency: currency}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r availabilityRepo) SaveRecord(ctx context.Context, rec availability.Record) error {
	var price *int64
	if rec.CustomPrice != nil {
		price = &rec.CustomPrice.Amount
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO availability_records (property_id, date, available, custom_price_cents, min_nights, max_nights, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (property_id, date) DO UPDATE SET
			available = EXCLUDED.available,
			custom_price_cents = EXCLUDED.custom_price_cents,
			min_nights = EXCLUDED.min_nights,
			max_nights = EXCLUDED.max_nights,
			updated_at = EXCLUDED.updated_at`,
		rec.PropertyID, daterange.Day(rec.Date), rec.Available, price, rec.MinNights, rec.MaxNights, updated)
	if err != nil {
		return fmt.Errorf("save availability record: %w", err)
	}
	return nil
}
