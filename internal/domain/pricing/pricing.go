package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hiddystays/internal/domain/availability"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
)

var (
	// ErrOracleUnavailable means no authoritative price could be computed.
	// Checkout must abort; a client-supplied amount is never a fallback.
	ErrOracleUnavailable = errors.New("pricing: authoritative price unavailable")
	ErrNegativeBase      = errors.New("pricing: base price must be non-negative")
)

type Source string

const (
	SourceBase   Source = "base"
	SourceDate   Source = "date_override"
	SourcePeriod Source = "price_period"
)

type NightPrice struct {
	Date   time.Time
	Price  money.Money
	Source Source
}

type Quote struct {
	PropertyID properties.PropertyID
	Range      daterange.DateRange
	Nights     []NightPrice
	Total      money.Money
}

// Override is a single resolved per-date price.
type Override struct {
	Price  money.Money
	Source Source
}

// Overrides is sparse: dates without an entry use the base price.
type Overrides map[string]Override

// BuildOverrides merges price periods and per-date records. A per-date record
// always wins over a period covering the same day; among periods the most
// recently created one wins, and equal creation times fall to the greater id.
func BuildOverrides(blocks []*availability.BlockedRange, records []availability.Record) Overrides {
	out := make(Overrides)
	winner := make(map[string]*availability.BlockedRange)
	for _, b := range blocks {
		if !b.IsPricePeriod() {
			continue
		}
		for d := range b.Span.Days() {
			key := daterange.Format(d)
			if cur, ok := winner[key]; ok && !periodBeats(b, cur) {
				continue
			}
			winner[key] = b
			out[key] = Override{Price: *b.PriceOverride, Source: SourcePeriod}
		}
	}
	for _, rec := range records {
		if rec.CustomPrice == nil {
			continue
		}
		out[daterange.Format(rec.Date)] = Override{Price: *rec.CustomPrice, Source: SourceDate}
	}
	return out
}

// periodBeats matches the ordering of calculate_booking_amount in the schema.
func periodBeats(a, b *availability.BlockedRange) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// PriceFor returns the nightly price of a single date. Calendar display and
// Resolve both go through here so they cannot drift apart.
func PriceFor(base money.Money, overrides Overrides, date time.Time) NightPrice {
	if o, ok := overrides[daterange.Format(date)]; ok {
		return NightPrice{Date: daterange.Day(date), Price: o.Price, Source: o.Source}
	}
	return NightPrice{Date: daterange.Day(date), Price: base, Source: SourceBase}
}

// Resolve prices every night of dr and sums them. The checkout day is not a
// night and is never charged.
func Resolve(base money.Money, dr daterange.DateRange, overrides Overrides) (Quote, error) {
	if err := dr.Validate(); err != nil {
		return Quote{}, err
	}
	if base.Amount < 0 {
		return Quote{}, ErrNegativeBase
	}
	if base.Currency == "" {
		return Quote{}, money.ErrInvalidCurrency
	}
	nights := make([]NightPrice, 0, dr.Nights())
	total := money.Money{Currency: base.Currency}
	for d := range dr.Days() {
		np := PriceFor(base, overrides, d)
		next, err := total.Add(np.Price)
		if err != nil {
			return Quote{}, fmt.Errorf("pricing: night %s: %w", daterange.Format(d), err)
		}
		total = next
		nights = append(nights, np)
	}
	return Quote{Range: dr, Nights: nights, Total: total}, nil
}

type QuoteInput struct {
	Property *properties.Property
	Range    daterange.DateRange
}

// Calculator is the pricing oracle port used by checkout and calendar
// queries.
type Calculator interface {
	Quote(ctx context.Context, input QuoteInput) (Quote, error)
}
