package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"hiddystays/internal/app/dto"
	handlersupport "hiddystays/internal/app/handlers/support"
	"hiddystays/internal/app/queries"
	"hiddystays/internal/app/uow"
	"hiddystays/internal/domain/properties"
)

const listGuestBookingsKey = "booking.list_guest"

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required"`
}

func (q ListGuestBookingsQuery) Key() string     { return listGuestBookingsKey }
func (q ListGuestBookingsQuery) ActorID() string { return q.GuestID }

type ListGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.GuestBookingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.GuestBookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	bookings, err := unit.Bookings().ListByGuest(execCtx, strings.TrimSpace(q.GuestID))
	if err != nil {
		return dto.GuestBookingCollection{}, err
	}
	now := handlersupport.Clock(h.Now)
	cache := make(map[properties.PropertyID]*properties.Property)
	items := make([]dto.GuestBookingSummary, 0, len(bookings))
	for _, b := range bookings {
		property, ok := cache[b.PropertyID]
		if !ok {
			property, err = unit.Properties().ByID(execCtx, b.PropertyID)
			if err != nil && h.Logger != nil {
				h.Logger.Warn("property snapshot missing for booking", "booking_id", b.ID, "property_id", b.PropertyID, "error", err)
			}
			cache[b.PropertyID] = property
		}
		items = append(items, dto.MapGuestBookingSummary(b, property, now))
	}
	return dto.GuestBookingCollection{Items: items}, nil
}

var _ queries.Handler[ListGuestBookingsQuery, dto.GuestBookingCollection] = (*ListGuestBookingsHandler)(nil)
