package dto

import (
	"hiddystays/internal/domain/availability"
	"hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
)

type AvailabilityDay struct {
	Date        string   `json:"date"`
	IsAvailable bool     `json:"is_available"`
	IsBooked    bool     `json:"is_booked"`
	IsBlocked   bool     `json:"is_blocked"`
	Price       MoneyDTO `json:"price"`
	PriceSource string   `json:"price_source"`
}

type Availability struct {
	PropertyID string            `json:"property_id"`
	StartDate  string            `json:"start_date"`
	EndDate    string            `json:"end_date"`
	Days       []AvailabilityDay `json:"days"`
}

func MapAvailability(propertyID string, window daterange.Span, days []availability.Day, base money.Money, overrides pricing.Overrides) Availability {
	out := Availability{
		PropertyID: propertyID,
		StartDate:  daterange.Format(window.Start),
		EndDate:    daterange.Format(window.End),
		Days:       make([]AvailabilityDay, 0, len(days)),
	}
	for _, d := range days {
		price := pricing.PriceFor(base, overrides, d.Date)
		out.Days = append(out.Days, AvailabilityDay{
			Date:        daterange.Format(d.Date),
			IsAvailable: d.IsAvailable,
			IsBooked:    d.IsBooked,
			IsBlocked:   d.IsBlocked,
			Price:       MapMoney(price.Price),
			PriceSource: string(price.Source),
		})
	}
	return out
}

type BlockedRange struct {
	ID            string    `json:"id"`
	PropertyID    string    `json:"property_id"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	Reason        string    `json:"reason,omitempty"`
	PriceOverride *MoneyDTO `json:"price_override,omitempty"`
}

func MapBlockedRange(b *availability.BlockedRange) BlockedRange {
	out := BlockedRange{
		ID:         string(b.ID),
		PropertyID: string(b.PropertyID),
		StartDate:  daterange.Format(b.Span.Start),
		EndDate:    daterange.Format(b.Span.End),
		Reason:     b.Reason,
	}
	if b.PriceOverride != nil {
		p := MapMoney(*b.PriceOverride)
		out.PriceOverride = &p
	}
	return out
}

type DateOverride struct {
	PropertyID  string    `json:"property_id"`
	Date        string    `json:"date"`
	Available   bool      `json:"available"`
	CustomPrice *MoneyDTO `json:"custom_price,omitempty"`
	MinNights   int       `json:"min_nights,omitempty"`
	MaxNights   int       `json:"max_nights,omitempty"`
}

func MapDateOverride(r availability.Record) DateOverride {
	out := DateOverride{
		PropertyID: string(r.PropertyID),
		Date:       daterange.Format(r.Date),
		Available:  r.Available,
		MinNights:  r.MinNights,
		MaxNights:  r.MaxNights,
	}
	if r.CustomPrice != nil {
		p := MapMoney(*r.CustomPrice)
		out.CustomPrice = &p
	}
	return out
}
