package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hiddystays/internal/app/commands"
	"hiddystays/internal/app/dto"
	bookingapp "hiddystays/internal/app/handlers/booking"
	handlersupport "hiddystays/internal/app/handlers/support"
	"hiddystays/internal/app/middleware"
	"hiddystays/internal/app/outbox"
	"hiddystays/internal/app/policies"
	domainbooking "hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/shared/money"
)

const (
	createSessionKey  = "payments.create_session"
	retryPaymentKey   = "payments.retry"
	confirmPaymentKey = "payments.confirm"
)

// CreateSessionCommand issues a checkout session, reusing a live one for the
// same booking and price.
type CreateSessionCommand struct {
	GuestID    string `validate:"required"`
	BookingID  string `validate:"required"`
	PropertyID string
}

func (c CreateSessionCommand) Key() string     { return createSessionKey }
func (c CreateSessionCommand) ActorID() string { return c.GuestID }

// RetryPaymentCommand always issues a fresh session after re-running the
// checks.
type RetryPaymentCommand struct {
	GuestID   string `validate:"required"`
	BookingID string `validate:"required"`
}

func (c RetryPaymentCommand) Key() string     { return retryPaymentKey }
func (c RetryPaymentCommand) ActorID() string { return c.GuestID }

type ConfirmSource string

const (
	SourceVerify  ConfirmSource = "verify"
	SourceWebhook ConfirmSource = "webhook"
)

// ConfirmPaymentCommand settles a paid session. GuestID is empty for
// provider webhooks.
type ConfirmPaymentCommand struct {
	SessionID string `validate:"required"`
	GuestID   string
	Source    ConfirmSource `validate:"required,oneof=verify webhook"`
}

func (c ConfirmPaymentCommand) Key() string { return confirmPaymentKey }

type ConfirmResult struct {
	BookingID        string        `json:"bookingId"`
	Status           string        `json:"status"`
	Stage            string        `json:"stage"`
	PaymentStatus    string        `json:"paymentStatus"`
	Paid             bool          `json:"paid"`
	Conflict         bool          `json:"conflict"`
	AlreadyProcessed bool          `json:"alreadyProcessed"`
	Refund           *dto.MoneyDTO `json:"refund,omitempty"`
	// Returned is set when this session's payment was refunded because the
	// booking had already been settled or cancelled.
	Returned         *dto.MoneyDTO `json:"returned,omitempty"`
}

func (c *Checkout) CreateSession(ctx context.Context, cmd CreateSessionCommand) (*SessionResult, error) {
	return c.issue(ctx, issueRequest{bookingID: cmd.BookingID, propertyID: cmd.PropertyID, guestID: cmd.GuestID})
}

func (c *Checkout) Retry(ctx context.Context, cmd RetryPaymentCommand) (*SessionResult, error) {
	return c.issue(ctx, issueRequest{bookingID: cmd.BookingID, guestID: cmd.GuestID, forceNew: true})
}

// Confirm marks the booking paid after re-running the conflict guard. When the
// dates were taken in the meantime the payment is refunded in full and the
// booking cancelled; the result reports the conflict instead of failing so
// the cancellation is committed. A paid session arriving for a booking that is
// already cancelled or settled by another payment is refunded in full.
func (c *Checkout) Confirm(ctx context.Context, cmd ConfirmPaymentCommand) (*ConfirmResult, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	if c.Payments == nil {
		return nil, fmt.Errorf("%w: no payment provider configured", policies.ErrPaymentProvider)
	}
	now := handlersupport.Clock(c.Now)

	var remote *policies.ProviderSession
	b, err := unit.Bookings().BySession(ctx, cmd.SessionID)
	if errors.Is(err, domainbooking.ErrBookingNotFound) {
		// A superseded session can still be paid; its metadata names the booking.
		rs, rerr := c.Payments.RetrieveSession(ctx, cmd.SessionID)
		if errors.Is(rerr, policies.ErrSessionNotFound) {
			return nil, err
		}
		if rerr != nil {
			return nil, providerError(rerr)
		}
		remote = &rs
		if rs.BookingID == "" {
			return nil, err
		}
		b, err = unit.Bookings().ByID(ctx, domainbooking.BookingID(rs.BookingID))
	}
	if err != nil {
		return nil, err
	}
	if cmd.GuestID != "" && !b.OwnedBy(cmd.GuestID) {
		return nil, bookingapp.ErrBookingNotOwned
	}
	if remote == nil {
		rs, err := c.Payments.RetrieveSession(ctx, cmd.SessionID)
		if err != nil {
			return nil, providerError(err)
		}
		remote = &rs
	}
	if remote.BookingID != "" && remote.BookingID != string(b.ID) {
		return nil, fmt.Errorf("%w: session %s belongs to booking %s", policies.ErrPaymentProvider, remote.ID, remote.BookingID)
	}
	if b.Payment != domainbooking.PaymentPending || b.Status != domainbooking.StatusPending {
		if !remote.Paid || remote.PaymentID == "" || b.Settled(remote.PaymentID) {
			res := confirmResult(b, now)
			res.AlreadyProcessed = true
			return res, nil
		}
		return c.returnPayment(ctx, b, *remote, now)
	}
	if !remote.Paid {
		return confirmResult(b, now), nil
	}
	if b.Session == nil || b.Session.ID != remote.ID {
		b.AdoptPaidSession(domainbooking.PaymentSession{ID: remote.ID, URL: remote.URL, Amount: remote.Amount, ExpiresAt: remote.ExpiresAt})
	}

	if err := unit.Properties().Lock(ctx, b.PropertyID); err != nil {
		return nil, err
	}
	guard := domainbooking.ConflictGuard{Bookings: unit.Bookings()}
	conflict := guard.Check(ctx, b.PropertyID, b.Range, b.ID)
	switch {
	case conflict == nil:
		if err := b.ConfirmPayment(remote.PaymentID, now); err != nil {
			return nil, err
		}
	case errors.Is(conflict, domainbooking.ErrPropertyUnavailable):
		if err := c.refundLost(ctx, b, remote.PaymentID, now); err != nil {
			return nil, err
		}
		if c.Logger != nil {
			c.Logger.Warn("paid booking lost its dates, refunded", "booking_id", b.ID, "session_id", remote.ID, "conflict", conflict)
		}
	default:
		return nil, conflict
	}

	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, c.Outbox, c.Encoder, b.Drain()); err != nil {
		return nil, err
	}
	res := confirmResult(b, now)
	res.Conflict = conflict != nil
	if c.Logger != nil && conflict == nil {
		c.Logger.Info("booking confirmed", "booking_id", b.ID, "payment_ref", b.PaymentRef, "source", cmd.Source)
	}
	return res, nil
}

// returnPayment refunds in full a capture the booking cannot keep: the
// booking was cancelled before the hosted page was paid, or another session
// already settled it.
func (c *Checkout) returnPayment(ctx context.Context, b *domainbooking.Booking, remote policies.ProviderSession, now time.Time) (*ConfirmResult, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	if remote.Amount.Amount > 0 {
		if err := c.Payments.Refund(ctx, remote.PaymentID, remote.Amount); err != nil {
			return nil, providerError(err)
		}
	}
	if err := b.ReturnPayment(remote.ID, remote.PaymentID, remote.Amount, now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, c.Outbox, c.Encoder, b.Drain()); err != nil {
		return nil, err
	}
	if c.Logger != nil {
		c.Logger.Warn("payment for settled booking refunded",
			"booking_id", b.ID, "status", b.Status, "session_id", remote.ID,
			"payment_ref", remote.PaymentID, "amount", remote.Amount.Amount)
	}
	res := confirmResult(b, now)
	res.AlreadyProcessed = true
	returned := dto.MapMoney(remote.Amount)
	res.Returned = &returned
	return res, nil
}

func (c *Checkout) refundLost(ctx context.Context, b *domainbooking.Booking, paymentID string, now time.Time) error {
	b.MarkPaidForRefund(paymentID)
	full := b.Total
	if full.Amount > 0 {
		if err := c.Payments.Refund(ctx, paymentID, full); err != nil {
			return providerError(err)
		}
	} else {
		full = money.Money{Currency: b.Total.Currency}
	}
	return b.Cancel("dates no longer available", full, now)
}

func confirmResult(b *domainbooking.Booking, now time.Time) *ConfirmResult {
	res := &ConfirmResult{
		BookingID:     string(b.ID),
		Status:        string(b.Status),
		Stage:         b.CheckoutStage(now),
		PaymentStatus: string(b.Payment),
		Paid:          b.Payment == domainbooking.PaymentPaid,
	}
	if b.Refunded.Amount > 0 {
		r := dto.MapMoney(b.Refunded)
		res.Refund = &r
	}
	return res
}

// Register wires the checkout commands onto bus.
func (c *Checkout) Register(bus *commands.InMemoryBus) {
	commands.RegisterHandler(bus, commands.HandlerFunc[CreateSessionCommand, *SessionResult](c.CreateSession))
	commands.RegisterHandler(bus, commands.HandlerFunc[RetryPaymentCommand, *SessionResult](c.Retry))
	commands.RegisterHandler(bus, commands.HandlerFunc[ConfirmPaymentCommand, *ConfirmResult](c.Confirm))
}

var _ middleware.ActorMessage = CreateSessionCommand{}
