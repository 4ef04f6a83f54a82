package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hiddystays/internal/app/commands"
	"hiddystays/internal/app/dto"
	handlersupport "hiddystays/internal/app/handlers/support"
	"hiddystays/internal/app/middleware"
	"hiddystays/internal/app/outbox"
	"hiddystays/internal/app/policies"
	domainbooking "hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/shared/money"
)

const cancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	GuestID   string `validate:"required"`
	BookingID string `validate:"required"`
	// Refund asks for the refund the cancellation schedule allows.
	Refund          bool
	Reason          string `validate:"max=500"`
	IdempotencyKeyV string
}

func (c CancelBookingCommand) Key() string            { return cancelBookingKey }
func (c CancelBookingCommand) ActorID() string        { return c.GuestID }
func (c CancelBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c CancelBookingCommand) ResultPrototype() any   { return &CancelBookingResult{} }

type CancelBookingResult struct {
	BookingID     string       `json:"booking_id"`
	Status        string       `json:"status"`
	PaymentStatus string       `json:"payment_status"`
	RefundPercent int          `json:"refund_percent"`
	Refund        dto.MoneyDTO `json:"refund"`
}

type CancelBookingHandler struct {
	Payments policies.PaymentProvider
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
	Now      func() time.Time
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*CancelBookingResult, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := handlersupport.Clock(h.Now)

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if !b.OwnedBy(cmd.GuestID) {
		return nil, ErrBookingNotOwned
	}
	if !b.Active() {
		return nil, fmt.Errorf("%w: booking is %s", domainbooking.ErrInvalidState, b.Status)
	}

	percent, owed := b.RefundFor(now)
	refund := money.Money{Currency: b.Total.Currency}
	if cmd.Refund && owed.Amount > 0 {
		if h.Payments == nil {
			return nil, fmt.Errorf("%w: no payment provider configured", policies.ErrPaymentProvider)
		}
		if err := h.Payments.Refund(ctx, b.PaymentRef, owed); err != nil {
			return nil, err
		}
		refund = owed
	}
	live, hasLive := b.ActiveSession(now)
	if err := b.Cancel(cmd.Reason, refund, now); err != nil {
		return nil, err
	}
	if hasLive && h.Payments != nil {
		// A page paid after this point is refunded by payment confirmation.
		if err := h.Payments.ExpireSession(ctx, live.ID); err != nil && h.Logger != nil {
			h.Logger.Warn("checkout session not expired on cancel", "booking_id", b.ID, "session_id", live.ID, "error", err)
		}
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b.Drain()); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking cancelled", "booking_id", b.ID, "refund_percent", percent, "refund", refund.Amount)
	}
	return &CancelBookingResult{
		BookingID:     string(b.ID),
		Status:        string(b.Status),
		PaymentStatus: string(b.Payment),
		RefundPercent: percent,
		Refund:        dto.MapMoney(refund),
	}, nil
}

var (
	_ commands.Handler[CancelBookingCommand, *CancelBookingResult] = (*CancelBookingHandler)(nil)
	_ middleware.IdempotentCommand                                 = CancelBookingCommand{}
)
