package availability

import (
	"context"
	"fmt"
	"strings"

	"hiddystays/internal/app/dto"
	handlersupport "hiddystays/internal/app/handlers/support"
	"hiddystays/internal/app/queries"
	"hiddystays/internal/app/uow"
	domainavailability "hiddystays/internal/domain/availability"
	"hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
)

const getAvailabilityKey = "availability.get"

// MaxWindowDays caps a single calendar request.
const MaxWindowDays = 366

type GetAvailabilityQuery struct {
	PropertyID string `validate:"required"`
	StartDate  string `validate:"required,datetime=2006-01-02"`
	EndDate    string `validate:"required,datetime=2006-01-02"`
}

func (q GetAvailabilityQuery) Key() string { return getAvailabilityKey }

type GetAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetAvailabilityHandler) Handle(ctx context.Context, q GetAvailabilityQuery) (dto.Availability, error) {
	window, err := parseWindow(q.StartDate, q.EndDate)
	if err != nil {
		return dto.Availability{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	propertyID := properties.PropertyID(strings.TrimSpace(q.PropertyID))
	property, err := unit.Properties().ByID(execCtx, propertyID)
	if err != nil {
		return dto.Availability{}, err
	}
	active, err := unit.Bookings().ListActiveByProperty(execCtx, propertyID)
	if err != nil {
		return dto.Availability{}, err
	}
	occupancies := make([]domainavailability.Occupancy, 0, len(active))
	for _, b := range active {
		occupancies = append(occupancies, domainavailability.Occupancy{BookingID: string(b.ID), Range: b.Range})
	}
	blocks, err := unit.Availability().Blocks(execCtx, propertyID, window)
	if err != nil {
		return dto.Availability{}, err
	}
	records, err := unit.Availability().Records(execCtx, propertyID, window)
	if err != nil {
		return dto.Availability{}, err
	}

	days := domainavailability.Calculate(window, occupancies, blocks, records)
	overrides := pricing.BuildOverrides(blocks, records)
	return dto.MapAvailability(string(property.ID), window, days, property.NightlyRate, overrides), nil
}

func parseWindow(start, end string) (daterange.Span, error) {
	from, err := daterange.ParseDay(start)
	if err != nil {
		return daterange.Span{}, err
	}
	to, err := daterange.ParseDay(end)
	if err != nil {
		return daterange.Span{}, err
	}
	window, err := daterange.NewSpan(from, to)
	if err != nil {
		return daterange.Span{}, err
	}
	if window.Len() > MaxWindowDays {
		return daterange.Span{}, fmt.Errorf("%w: window longer than %d days", daterange.ErrInvalidRange, MaxWindowDays)
	}
	return window, nil
}

var _ queries.Handler[GetAvailabilityQuery, dto.Availability] = (*GetAvailabilityHandler)(nil)
