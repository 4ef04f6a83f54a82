package postgres

import (
	"context"
	"fmt"

	"hiddystays/internal/domain/pricing"
)

// CheckedCalculator quotes with Local and confirms the total against the
// calculate_booking_amount function inside the same transaction. Any
// disagreement fails closed.
type CheckedCalculator struct {
	Local pricing.Calculator
}

func (c CheckedCalculator) Quote(ctx context.Context, in pricing.QuoteInput) (pricing.Quote, error) {
	quote, err := c.Local.Quote(ctx, in)
	if err != nil {
		return pricing.Quote{}, err
	}
	tx, ok := txFrom(ctx)
	if !ok {
		return pricing.Quote{}, fmt.Errorf("%w: no transaction bound", pricing.ErrOracleUnavailable)
	}
	var amount int64
	err = tx.QueryRow(ctx, `SELECT calculate_booking_amount($1, $2::date, $3::date)`,
		string(in.Property.ID), in.Range.CheckIn, in.Range.CheckOut).Scan(&amount)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("%w: %v", pricing.ErrOracleUnavailable, err)
	}
	if amount != quote.Total.Amount {
		return pricing.Quote{}, fmt.Errorf("%w: database total %d, computed %d", pricing.ErrOracleUnavailable, amount, quote.Total.Amount)
	}
	return quote, nil
}
