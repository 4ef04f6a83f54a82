package dto

import (
	"time"

	"hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
)

type PropertySnapshot struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

type NightPrice struct {
	Date   string   `json:"date"`
	Price  MoneyDTO `json:"price"`
	Source string   `json:"source"`
}

type Quote struct {
	Nights []NightPrice `json:"nights"`
	Total  MoneyDTO     `json:"total"`
}

func MapQuote(q pricing.Quote) Quote {
	nights := make([]NightPrice, 0, len(q.Nights))
	for _, n := range q.Nights {
		nights = append(nights, NightPrice{Date: daterange.Format(n.Date), Price: MapMoney(n.Price), Source: string(n.Source)})
	}
	return Quote{Nights: nights, Total: MapMoney(q.Total)}
}

type GuestBookingSummary struct {
	ID            string           `json:"id"`
	Property      PropertySnapshot `json:"property"`
	CheckIn       string           `json:"check_in"`
	CheckOut      string           `json:"check_out"`
	Nights        int              `json:"nights"`
	Guests        int              `json:"guests"`
	Status        string           `json:"status"`
	Stage         string           `json:"stage"`
	PaymentStatus string           `json:"payment_status"`
	Total         MoneyDTO         `json:"total"`
	Refunded      *MoneyDTO        `json:"refunded,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	CanReview     bool             `json:"can_review"`
}

type GuestBookingCollection struct {
	Items []GuestBookingSummary `json:"items"`
}

func MapGuestBookingSummary(b *booking.Booking, property *properties.Property, now time.Time) GuestBookingSummary {
	snapshot := PropertySnapshot{ID: string(b.PropertyID)}
	if property != nil {
		snapshot.Title = property.Title
		snapshot.City = property.City
		snapshot.Country = property.Country
	}
	out := GuestBookingSummary{
		ID:            string(b.ID),
		Property:      snapshot,
		CheckIn:       daterange.Format(b.Range.CheckIn),
		CheckOut:      daterange.Format(b.Range.CheckOut),
		Nights:        b.Range.Nights(),
		Guests:        b.Guests,
		Status:        string(b.Status),
		Stage:         b.CheckoutStage(now),
		PaymentStatus: string(b.Payment),
		Total:         MapMoney(b.Total),
		CreatedAt:     b.CreatedAt,
		CanReview:     b.Status == booking.StatusCompleted,
	}
	if b.Refunded.Amount > 0 {
		r := MapMoney(b.Refunded)
		out.Refunded = &r
	}
	return out
}
