package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/events"
	"hiddystays/internal/domain/shared/money"
)

var (
	ErrBlockConflictsBooking = errors.New("availability: blocked range overlaps an active booking")
	ErrBlockNotFound         = errors.New("availability: blocked range not found")
	ErrNegativePrice         = errors.New("availability: custom price must be non-negative")
)

type BlockID string

// BlockedRange is a host-entered inclusive period. When PriceOverride is set
// the range is a price period: it prices its days but leaves them bookable.
type BlockedRange struct {
	ID            BlockID
	PropertyID    properties.PropertyID
	Span          daterange.Span
	Reason        string
	PriceOverride *money.Money
	CreatedAt     time.Time
	events.EventRecorder
}

func (b *BlockedRange) IsPricePeriod() bool {
	return b.PriceOverride != nil
}

// Record is an explicit per-date override. Most dates have none.
type Record struct {
	PropertyID  properties.PropertyID
	Date        time.Time
	Available   bool
	CustomPrice *money.Money
	MinNights   int
	MaxNights   int
	UpdatedAt   time.Time
}

func (r Record) Limits() properties.NightsLimits {
	return properties.NightsLimits{Min: r.MinNights, Max: r.MaxNights}
}

// Occupancy is the half-open stay of a pending or confirmed booking.
type Occupancy struct {
	BookingID string
	Range     daterange.DateRange
}

type Repository interface {
	Blocks(ctx context.Context, id properties.PropertyID, window daterange.Span) ([]*BlockedRange, error)
	BlockByID(ctx context.Context, id BlockID) (*BlockedRange, error)
	SaveBlock(ctx context.Context, block *BlockedRange) error
	DeleteBlock(ctx context.Context, id BlockID) error
	Records(ctx context.Context, id properties.PropertyID, window daterange.Span) ([]Record, error)
	SaveRecord(ctx context.Context, record Record) error
}

type NewBlockParams struct {
	ID            BlockID
	PropertyID    properties.PropertyID
	Span          daterange.Span
	Reason        string
	PriceOverride *money.Money
	Active        []Occupancy
	Now           time.Time
}

// NewBlock creates a host block, refusing to cover nights already held by an
// active booking. Price periods never conflict since they keep dates open.
func NewBlock(params NewBlockParams) (*BlockedRange, error) {
	if params.Span.Start.IsZero() || params.Span.End.Before(params.Span.Start) {
		return nil, daterange.ErrInvalidRange
	}
	if params.PriceOverride != nil && params.PriceOverride.Amount < 0 {
		return nil, ErrNegativePrice
	}
	if params.PriceOverride == nil {
		for _, occ := range params.Active {
			if params.Span.OverlapsStay(occ.Range) {
				return nil, fmt.Errorf("%w: booking %s holds %s", ErrBlockConflictsBooking, occ.BookingID, occ.Range)
			}
		}
	}
	b := &BlockedRange{
		ID:            params.ID,
		PropertyID:    params.PropertyID,
		Span:          params.Span,
		Reason:        strings.TrimSpace(params.Reason),
		PriceOverride: params.PriceOverride,
		CreatedAt:     params.Now.UTC(),
	}
	b.Record(DatesBlocked{PropertyID: string(b.PropertyID), BlockID: string(b.ID), Span: b.Span, Reason: b.Reason, At: b.CreatedAt})
	return b, nil
}

func (b *BlockedRange) Release(now time.Time) {
	b.Record(DatesUnblocked{PropertyID: string(b.PropertyID), BlockID: string(b.ID), Span: b.Span, At: now.UTC()})
}

// Day is one entry of the calendar view. A date may be both booked and
// blocked; both flags are kept for diagnostics.
type Day struct {
	Date        time.Time
	IsAvailable bool
	IsBooked    bool
	IsBlocked   bool
}

// Calculate builds the day-by-day view of window. It is a pure function of
// its inputs.
func Calculate(window daterange.Span, occupancies []Occupancy, blocks []*BlockedRange, records []Record) []Day {
	closed := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if !rec.Available {
			closed[daterange.Format(rec.Date)] = struct{}{}
		}
	}
	days := make([]Day, 0, window.Len())
	for date := range window.Days() {
		booked := false
		for _, occ := range occupancies {
			if occ.Range.ContainsDate(date) {
				booked = true
				break
			}
		}
		_, blocked := closed[daterange.Format(date)]
		if !blocked {
			for _, b := range blocks {
				if !b.IsPricePeriod() && b.Span.Contains(date) {
					blocked = true
					break
				}
			}
		}
		days = append(days, Day{
			Date:        date,
			IsAvailable: !booked && !blocked,
			IsBooked:    booked,
			IsBlocked:   blocked,
		})
	}
	return days
}

// StayOpen reports whether every night of dr is free of blocks and closed
// records. Bookings are checked separately by the conflict guard.
func StayOpen(dr daterange.DateRange, blocks []*BlockedRange, records []Record) bool {
	for _, b := range blocks {
		if !b.IsPricePeriod() && b.Span.OverlapsStay(dr) {
			return false
		}
	}
	for _, rec := range records {
		if !rec.Available && dr.ContainsDate(daterange.Day(rec.Date)) {
			return false
		}
	}
	return true
}
