package booking

import (
	"time"

	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
)

const (
	EventRequested     = "booking.requested"
	EventSessionIssued = "booking.payment_session_issued"
	EventConfirmed     = "booking.confirmed"
	EventCancelled     = "booking.cancelled"
	EventCompleted     = "booking.completed"
	EventPaymentReturn = "booking.payment_returned"
)

type BookingRequested struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	GuestID    string
	Range      daterange.DateRange
	Guests     int
	Quoted     money.Money
	At         time.Time
}

func (e BookingRequested) EventName() string     { return EventRequested }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type PaymentSessionIssued struct {
	BookingID BookingID
	SessionID string
	Amount    money.Money
	ExpiresAt time.Time
	At        time.Time
}

func (e PaymentSessionIssued) EventName() string     { return EventSessionIssued }
func (e PaymentSessionIssued) AggregateID() string   { return string(e.BookingID) }
func (e PaymentSessionIssued) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	GuestID    string
	GuestEmail string
	GuestName  string
	Range      daterange.DateRange
	Total      money.Money
	PaymentRef string
	At         time.Time
}

func (e BookingConfirmed) EventName() string     { return EventConfirmed }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	GuestID    string
	GuestEmail string
	GuestName  string
	Range      daterange.DateRange
	Refund     money.Money
	Reason     string
	At         time.Time
}

func (e BookingCancelled) EventName() string     { return EventCancelled }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	At         time.Time
}

func (e BookingCompleted) EventName() string     { return EventCompleted }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type PaymentReturned struct {
	BookingID  BookingID
	GuestID    string
	SessionID  string
	PaymentRef string
	Amount     money.Money
	At         time.Time
}

func (e PaymentReturned) EventName() string     { return EventPaymentReturn }
func (e PaymentReturned) AggregateID() string   { return string(e.BookingID) }
func (e PaymentReturned) OccurredAt() time.Time { return e.At }
