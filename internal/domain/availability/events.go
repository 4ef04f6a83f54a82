package availability

import (
	"time"

	"hiddystays/internal/domain/shared/daterange"
)

type DatesBlocked struct {
	PropertyID string
	BlockID    string
	Span       daterange.Span
	Reason     string
	At         time.Time
}

func (e DatesBlocked) EventName() string     { return "availability.blocked" }
func (e DatesBlocked) AggregateID() string   { return e.PropertyID }
func (e DatesBlocked) OccurredAt() time.Time { return e.At }

type DatesUnblocked struct {
	PropertyID string
	BlockID    string
	Span       daterange.Span
	At         time.Time
}

func (e DatesUnblocked) EventName() string     { return "availability.unblocked" }
func (e DatesUnblocked) AggregateID() string   { return e.PropertyID }
func (e DatesUnblocked) OccurredAt() time.Time { return e.At }

type DateOverridden struct {
	PropertyID string
	Date       string
	Available  bool
	PriceCents *int64
	At         time.Time
}

func (e DateOverridden) EventName() string     { return "availability.date_overridden" }
func (e DateOverridden) AggregateID() string   { return e.PropertyID }
func (e DateOverridden) OccurredAt() time.Time { return e.At }
