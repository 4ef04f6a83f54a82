package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hiddystays/internal/app/commands"
	"hiddystays/internal/app/dto"
	handlersupport "hiddystays/internal/app/handlers/support"
	"hiddystays/internal/app/middleware"
	"hiddystays/internal/app/outbox"
	domainavailability "hiddystays/internal/domain/availability"
	domainbooking "hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
)

const requestBookingKey = "booking.request"

var (
	ErrBookingNotOwned = errors.New("booking: not owned by guest")
	ErrPropertyClosed  = errors.New("booking: property is not accepting bookings")
)

type RequestBookingCommand struct {
	GuestID         string `validate:"required"`
	GuestEmail      string `validate:"omitempty,email"`
	GuestName       string `validate:"max=120"`
	PropertyID      string `validate:"required"`
	CheckIn         string `validate:"required,datetime=2006-01-02"`
	CheckOut        string `validate:"required,datetime=2006-01-02"`
	Guests          int    `validate:"required,min=1,max=50"`
	IdempotencyKeyV string
}

func (c RequestBookingCommand) Key() string            { return requestBookingKey }
func (c RequestBookingCommand) ActorID() string        { return c.GuestID }
func (c RequestBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c RequestBookingCommand) ResultPrototype() any   { return &RequestBookingResult{} }

type RequestBookingResult struct {
	BookingID string       `json:"booking_id"`
	Status    string       `json:"status"`
	Nights    int          `json:"nights"`
	Total     dto.MoneyDTO `json:"total"`
	Quote     dto.Quote    `json:"quote"`
}

// RequestBookingHandler creates a pending booking at the authoritative price
// after the availability and conflict checks pass.
type RequestBookingHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Now     func() time.Time
}

func (h *RequestBookingHandler) Handle(ctx context.Context, cmd RequestBookingCommand) (*RequestBookingResult, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := handlersupport.Clock(h.Now)

	dr, err := daterange.Parse(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	if dr.CheckIn.Before(daterange.Day(now)) {
		return nil, domainbooking.ErrCheckInInPast
	}

	propertyID := properties.PropertyID(strings.TrimSpace(cmd.PropertyID))
	property, err := unit.Properties().ByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !property.Active {
		return nil, ErrPropertyClosed
	}
	if !property.AllowsGuests(cmd.Guests) {
		return nil, fmt.Errorf("%w: property hosts at most %d guests", domainbooking.ErrInvalidGuests, property.GuestsLimit)
	}
	if err := unit.Properties().Lock(ctx, property.ID); err != nil {
		return nil, err
	}

	stay, err := daterange.NewSpan(dr.CheckIn, dr.CheckOut.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	blocks, err := unit.Availability().Blocks(ctx, property.ID, stay)
	if err != nil {
		return nil, err
	}
	records, err := unit.Availability().Records(ctx, property.ID, stay)
	if err != nil {
		return nil, err
	}
	if !domainavailability.StayOpen(dr, blocks, records) {
		return nil, fmt.Errorf("%w: dates blocked by host", domainbooking.ErrPropertyUnavailable)
	}
	if err := property.AllowsStay(dr.Nights(), checkInLimits(records, dr.CheckIn)); err != nil {
		return nil, err
	}

	guard := domainbooking.ConflictGuard{Bookings: unit.Bookings()}
	if err := guard.Check(ctx, property.ID, dr, ""); err != nil {
		return nil, err
	}

	quote, err := unit.Pricing().Quote(ctx, pricing.QuoteInput{Property: property, Range: dr})
	if err != nil {
		return nil, oracleError(err)
	}

	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(uuid.NewString()),
		PropertyID: property.ID,
		GuestID:    cmd.GuestID,
		GuestEmail: cmd.GuestEmail,
		GuestName:  cmd.GuestName,
		Range:      dr,
		Guests:     cmd.Guests,
		Total:      quote.Total,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b.Drain()); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking requested", "booking_id", b.ID, "property_id", b.PropertyID, "range", b.Range.String(), "total", b.Total.Amount)
	}

	return &RequestBookingResult{
		BookingID: string(b.ID),
		Status:    string(b.Status),
		Nights:    dr.Nights(),
		Total:     dto.MapMoney(b.Total),
		Quote:     dto.MapQuote(quote),
	}, nil
}

func checkInLimits(records []domainavailability.Record, checkIn time.Time) properties.NightsLimits {
	day := daterange.Format(checkIn)
	for _, rec := range records {
		if daterange.Format(rec.Date) == day {
			return rec.Limits()
		}
	}
	return properties.NightsLimits{}
}

// oracleError keeps pricing failures inside the PricingOracle class.
func oracleError(err error) error {
	if errors.Is(err, pricing.ErrOracleUnavailable) || errors.Is(err, daterange.ErrInvalidRange) {
		return err
	}
	return fmt.Errorf("%w: %v", pricing.ErrOracleUnavailable, err)
}

var (
	_ commands.Handler[RequestBookingCommand, *RequestBookingResult] = (*RequestBookingHandler)(nil)
	_ middleware.IdempotentCommand                                   = RequestBookingCommand{}
)
