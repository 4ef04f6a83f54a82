package uow

import (
	"context"
	"errors"

	"hiddystays/internal/domain/availability"
	"hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/properties"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

// UnitOfWork groups the repositories touched by one command. Write units
// serialise conflicting booking writes until Commit or Rollback.
type UnitOfWork interface {
	Properties() properties.Repository
	Availability() availability.Repository
	Bookings() booking.Repository
	Pricing() pricing.Calculator

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (a pgx
// transaction) through the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

type ctxKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok
}

// Bind returns ctx carrying unit and any driver state it injects.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}
