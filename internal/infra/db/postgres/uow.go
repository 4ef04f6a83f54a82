package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hiddystays/internal/app/uow"
	"hiddystays/internal/domain/availability"
	"hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/properties"
)

// Factory opens one pgx transaction per unit of work.
type Factory struct {
	Pool    *pgxpool.Pool
	Pricing pricing.Calculator
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := f.Pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &Unit{tx: tx, pricing: f.Pricing}, nil
}

type Unit struct {
	tx      pgx.Tx
	pricing pricing.Calculator
}

func (u *Unit) Properties() properties.Repository     { return propertyRepo{q: u.tx} }
func (u *Unit) Availability() availability.Repository { return availabilityRepo{q: u.tx} }
func (u *Unit) Bookings() booking.Repository          { return bookingRepo{q: u.tx} }
func (u *Unit) Pricing() pricing.Calculator           { return u.pricing }

func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey{}, u.tx)
}

func (u *Unit) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return fmt.Errorf("%w: %v", booking.ErrPropertyUnavailable, err)
		}
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

var (
	_ uow.UoWFactory      = (*Factory)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
