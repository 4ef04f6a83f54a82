package pricing

import (
	"context"
	"errors"
	"fmt"

	"hiddystays/internal/app/uow"
	domainpricing "hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/shared/daterange"
)

// Local quotes a stay from the calendar of the unit of work bound to ctx:
// price periods and per-date prices layered over the property's base rate.
type Local struct{}

func (Local) Quote(ctx context.Context, in domainpricing.QuoteInput) (domainpricing.Quote, error) {
	if in.Property == nil {
		return domainpricing.Quote{}, fmt.Errorf("%w: property missing", domainpricing.ErrOracleUnavailable)
	}
	if err := in.Range.Validate(); err != nil {
		return domainpricing.Quote{}, err
	}
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return domainpricing.Quote{}, fmt.Errorf("%w: %v", domainpricing.ErrOracleUnavailable, uow.ErrUnitOfWorkMissing)
	}
	window := StayWindow(in.Range)
	blocks, err := unit.Availability().Blocks(ctx, in.Property.ID, window)
	if err != nil {
		return domainpricing.Quote{}, fmt.Errorf("%w: load price periods: %v", domainpricing.ErrOracleUnavailable, err)
	}
	records, err := unit.Availability().Records(ctx, in.Property.ID, window)
	if err != nil {
		return domainpricing.Quote{}, fmt.Errorf("%w: load date prices: %v", domainpricing.ErrOracleUnavailable, err)
	}
	quote, err := domainpricing.Resolve(in.Property.NightlyRate, in.Range, domainpricing.BuildOverrides(blocks, records))
	if err != nil {
		if errors.Is(err, daterange.ErrInvalidRange) {
			return domainpricing.Quote{}, err
		}
		return domainpricing.Quote{}, fmt.Errorf("%w: %v", domainpricing.ErrOracleUnavailable, err)
	}
	quote.PropertyID = in.Property.ID
	return quote, nil
}

// StayWindow is the inclusive span of nights of dr.
func StayWindow(dr daterange.DateRange) daterange.Span {
	return daterange.Span{Start: dr.CheckIn, End: dr.CheckOut.AddDate(0, 0, -1)}
}
