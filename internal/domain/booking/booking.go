package booking

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
	ErrInvalidGuests       = errors.New("booking: guests count must be positive")
	ErrInvalidState        = errors.New("booking: invalid state transition")
	ErrBookingNotFound     = errors.New("booking: not found")
	ErrCheckInInPast       = errors.New("booking: check-in date is in the past")
	ErrPropertyUnavailable = errors.New("booking: property unavailable for the selected dates")
	ErrNotEligible         = errors.New("booking: not eligible for checkout")
	ErrSessionRequired     = errors.New("booking: payment session required before confirmation")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// StageAwaitingPayment is derived, never stored: a pending booking holding a
// live payment session.
const StageAwaitingPayment = "awaiting_payment"

// PaymentSession is the provider checkout session currently attached to a
// booking. Only the latest one is kept.
type PaymentSession struct {
	ID        string
	URL       string
	Amount    money.Money
	ExpiresAt time.Time
	Consumed  bool
}

// LiveAt reports whether the session can still be paid at now.
func (s *PaymentSession) LiveAt(now time.Time) bool {
	return s != nil && s.ID != "" && !s.Consumed && now.Before(s.ExpiresAt)
}

type Booking struct {
	ID               BookingID
	PropertyID       properties.PropertyID
	GuestID          string
	GuestEmail       string
	GuestName        string
	Range            daterange.DateRange
	Guests           int
	Total            money.Money
	Status           Status
	Payment          PaymentStatus
	Session          *PaymentSession
	PaymentRef       string
	Refunded         money.Money
	// ReturnedPayments are captures outside the booking's own settlement,
	// each refunded in full.
	ReturnedPayments []string
	CancelReason     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	BySession(ctx context.Context, sessionID string) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	// ListActiveByProperty returns pending and confirmed bookings.
	ListActiveByProperty(ctx context.Context, propertyID properties.PropertyID) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	ListDueForCompletion(ctx context.Context, now time.Time) ([]*Booking, error)
}

type CreateParams struct {
	ID         BookingID
	PropertyID properties.PropertyID
	GuestID    string
	GuestEmail string
	GuestName  string
	Range      daterange.DateRange
	Guests     int
	Total      money.Money
	CreatedAt  time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, errors.New("booking: guest id required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if params.Total.Amount < 0 {
		return nil, errors.New("booking: total must be non-negative")
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:         params.ID,
		PropertyID: params.PropertyID,
		GuestID:    params.GuestID,
		GuestEmail: strings.TrimSpace(params.GuestEmail),
		GuestName:  strings.TrimSpace(params.GuestName),
		Range:      params.Range,
		Guests:     params.Guests,
		Total:      params.Total,
		Status:     StatusPending,
		Payment:    PaymentPending,
		Refunded:   money.Money{Currency: params.Total.Currency},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.Record(BookingRequested{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		Range:      b.Range,
		Guests:     b.Guests,
		Quoted:     b.Total,
		At:         now,
	})
	return b, nil
}

// Active bookings hold their nights against other guests.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

func (b *Booking) OwnedBy(guestID string) bool {
	return guestID != "" && b.GuestID == guestID
}

// EnsureCheckoutEligible rejects bookings that can no longer be paid for.
func (b *Booking) EnsureCheckoutEligible(property *properties.Property) error {
	switch {
	case b.Payment == PaymentPaid || b.Payment == PaymentRefunded:
		return fmt.Errorf("%w: booking already paid", ErrNotEligible)
	case b.Status == StatusCancelled:
		return fmt.Errorf("%w: booking cancelled", ErrNotEligible)
	case b.Status != StatusPending:
		return fmt.Errorf("%w: booking is %s", ErrNotEligible, b.Status)
	case property == nil || !property.Active:
		return fmt.Errorf("%w: property inactive", ErrNotEligible)
	}
	return nil
}

// ActiveSession returns the attached session when it is unexpired and
// unconsumed; an expired session counts as absent.
func (b *Booking) ActiveSession(now time.Time) (PaymentSession, bool) {
	if !b.Session.LiveAt(now) {
		return PaymentSession{}, false
	}
	return *b.Session, true
}

// AttachSession replaces the current session and overwrites the total with the
// server-computed amount the session was created for.
func (b *Booking) AttachSession(session PaymentSession, now time.Time) error {
	if b.Status != StatusPending || b.Payment != PaymentPending {
		return ErrInvalidState
	}
	if session.ID == "" {
		return ErrSessionRequired
	}
	session.Consumed = false
	b.Session = &session
	b.Total = session.Amount
	b.UpdatedAt = now.UTC()
	b.Record(PaymentSessionIssued{
		BookingID: b.ID,
		SessionID: session.ID,
		Amount:    session.Amount,
		ExpiresAt: session.ExpiresAt,
		At:        b.UpdatedAt,
	})
	return nil
}

// ConfirmPayment marks the booking paid and confirmed. The caller must have
// re-run the conflict guard first.
func (b *Booking) ConfirmPayment(paymentRef string, now time.Time) error {
	if b.Status != StatusPending || b.Payment != PaymentPending {
		return ErrInvalidState
	}
	if b.Session == nil {
		return ErrSessionRequired
	}
	b.Session.Consumed = true
	b.PaymentRef = paymentRef
	b.Payment = PaymentPaid
	b.Status = StatusConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		GuestEmail: b.GuestEmail,
		GuestName:  b.GuestName,
		Range:      b.Range,
		Total:      b.Total,
		PaymentRef: paymentRef,
		At:         b.UpdatedAt,
	})
	return nil
}

// AdoptPaidSession switches back to a superseded session the guest paid
// anyway. The booking total follows the amount actually charged.
func (b *Booking) AdoptPaidSession(session PaymentSession) {
	session.Consumed = false
	b.Session = &session
	b.Total = session.Amount
}

// MarkPaidForRefund records a captured payment that is refunded in the same
// step because the dates were lost to another guest.
func (b *Booking) MarkPaidForRefund(paymentRef string) {
	if b.Session != nil {
		b.Session.Consumed = true
	}
	b.PaymentRef = paymentRef
	b.Payment = PaymentPaid
}

// Settled reports whether paymentID was already accounted for, either as the
// booking's payment or as a returned one.
func (b *Booking) Settled(paymentID string) bool {
	if paymentID == "" {
		return false
	}
	if paymentID == b.PaymentRef {
		return true
	}
	for _, id := range b.ReturnedPayments {
		if id == paymentID {
			return true
		}
	}
	return false
}

// ReturnPayment records a capture the booking cannot keep: a second session
// paid after the booking was settled, or a session paid after cancellation.
// The provider refund happens before this.
func (b *Booking) ReturnPayment(sessionID, paymentID string, amount money.Money, now time.Time) error {
	if paymentID == "" {
		return fmt.Errorf("%w: payment reference required", ErrInvalidState)
	}
	if b.Settled(paymentID) {
		return nil
	}
	b.ReturnedPayments = append(b.ReturnedPayments, paymentID)
	b.UpdatedAt = now.UTC()
	b.Record(PaymentReturned{
		BookingID:  b.ID,
		GuestID:    b.GuestID,
		SessionID:  sessionID,
		PaymentRef: paymentID,
		Amount:     amount,
		At:         b.UpdatedAt,
	})
	return nil
}

// Cancel moves the booking to cancelled. A positive refund marks the payment
// refunded; the provider call happens before this.
func (b *Booking) Cancel(reason string, refund money.Money, now time.Time) error {
	if !b.Active() {
		return ErrInvalidState
	}
	if refund.Amount > 0 {
		if b.Payment != PaymentPaid {
			return fmt.Errorf("%w: nothing was paid", ErrInvalidState)
		}
		b.Payment = PaymentRefunded
		b.Refunded = refund
	}
	if b.Session != nil {
		b.Session.Consumed = true
	}
	b.Status = StatusCancelled
	b.CancelReason = strings.TrimSpace(reason)
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		GuestEmail: b.GuestEmail,
		GuestName:  b.GuestName,
		Range:      b.Range,
		Refund:     refund,
		Reason:     b.CancelReason,
		At:         b.UpdatedAt,
	})
	return nil
}

// Complete closes a confirmed stay once its checkout date has passed.
func (b *Booking) Complete(now time.Time) error {
	if b.Status != StatusConfirmed {
		return ErrInvalidState
	}
	if now.Before(b.Range.CheckOut) {
		return fmt.Errorf("%w: stay not finished", ErrInvalidState)
	}
	b.Status = StatusCompleted
	b.UpdatedAt = now.UTC()
	b.Record(BookingCompleted{BookingID: b.ID, PropertyID: b.PropertyID, At: b.UpdatedAt})
	return nil
}

// CheckoutStage is the status shown to clients, including the derived
// awaiting_payment stage.
func (b *Booking) CheckoutStage(now time.Time) string {
	if b.Status == StatusPending && b.Session.LiveAt(now) {
		return StageAwaitingPayment
	}
	return string(b.Status)
}
