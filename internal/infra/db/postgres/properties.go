package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hiddystays/internal/domain/properties"
)

type propertyRepo struct {
	q querier
}

const propertyColumns = `id, host_id, title, city, country, nightly_rate_cents, currency,
	min_nights, max_nights, guests_limit, active, created_at, updated_at`

func (r propertyRepo) ByID(ctx context.Context, id properties.PropertyID) (*properties.Property, error) {
	var p properties.Property
	err := r.q.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id).Scan(
		&p.ID, &p.Host, &p.Title, &p.City, &p.Country,
		&p.NightlyRate.Amount, &p.NightlyRate.Currency,
		&p.MinNights, &p.MaxNights, &p.GuestsLimit, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, properties.ErrNotFound
		}
		return nil, fmt.Errorf("get property: %w", err)
	}
	return &p, nil
}

func (r propertyRepo) Save(ctx context.Context, p *properties.Property) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO properties (`+propertyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			host_id = EXCLUDED.host_id,
			title = EXCLUDED.title,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			nightly_rate_cents = EXCLUDED.nightly_rate_cents,
			currency = EXCLUDED.currency,
			min_nights = EXCLUDED.min_nights,
			max_nights = EXCLUDED.max_nights,
			guests_limit = EXCLUDED.guests_limit,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.Host, p.Title, p.City, p.Country,
		p.NightlyRate.Amount, p.NightlyRate.Currency,
		p.MinNights, p.MaxNights, p.GuestsLimit, p.Active,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save property: %w", err)
	}
	return nil
}

// Lock takes a transaction-scoped advisory lock on the property id.
func (r propertyRepo) Lock(ctx context.Context, id properties.PropertyID) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, string(id)); err != nil {
		return fmt.Errorf("lock property: %w", err)
	}
	return nil
}
