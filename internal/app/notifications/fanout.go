package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	handlersupport "hiddystays/internal/app/handlers/support"
	"hiddystays/internal/app/outbox"
	"hiddystays/internal/app/policies"
	"hiddystays/internal/app/uow"
	domainbooking "hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
)

const (
	KindBookingConfirmed = "booking_confirmed"
	KindBookingCancelled = "booking_cancelled"
)

// Fanout turns committed booking events into guest email and in-app
// notifications for guest and host. It never fails the caller: every error is
// logged and dropped.
type Fanout struct {
	UoWFactory uow.UoWFactory
	Mailer     policies.Notifier
	InApp      policies.InAppWriter
	Logger     *slog.Logger
}

func (f *Fanout) Dispatch(ctx context.Context, rec outbox.EventRecord) error {
	switch rec.Name {
	case domainbooking.EventConfirmed:
		var ev domainbooking.BookingConfirmed
		if !f.decode(rec, &ev) {
			return nil
		}
		f.bookingConfirmed(ctx, ev)
	case domainbooking.EventCancelled:
		var ev domainbooking.BookingCancelled
		if !f.decode(rec, &ev) {
			return nil
		}
		f.bookingCancelled(ctx, ev)
	}
	return nil
}

func (f *Fanout) bookingConfirmed(ctx context.Context, ev domainbooking.BookingConfirmed) {
	property := f.property(ctx, ev.PropertyID)
	title := propertyTitle(property, ev.PropertyID)
	stay := stayText(ev.Range)

	f.email(ctx, ev.BookingID, policies.Email{
		To:      ev.GuestEmail,
		Subject: "Your stay at " + title + " is confirmed",
		Text: fmt.Sprintf("Hi %s,\n\nYour booking %s at %s for %s is confirmed. Total paid: %.2f %s.\n",
			greeting(ev.GuestName), ev.BookingID, title, stay, ev.Total.Major(), ev.Total.Currency),
	})
	f.inApp(ctx, policies.InAppNotification{
		UserID:    ev.GuestID,
		Kind:      KindBookingConfirmed,
		Title:     "Booking confirmed",
		Body:      fmt.Sprintf("%s, %s", title, stay),
		BookingID: string(ev.BookingID),
	})
	if property != nil {
		f.inApp(ctx, policies.InAppNotification{
			UserID:    string(property.Host),
			Kind:      KindBookingConfirmed,
			Title:     "New confirmed booking",
			Body:      fmt.Sprintf("%s booked %s for %s", greeting(ev.GuestName), title, stay),
			BookingID: string(ev.BookingID),
		})
	}
}

func (f *Fanout) bookingCancelled(ctx context.Context, ev domainbooking.BookingCancelled) {
	property := f.property(ctx, ev.PropertyID)
	title := propertyTitle(property, ev.PropertyID)
	stay := stayText(ev.Range)

	body := fmt.Sprintf("Hi %s,\n\nYour booking %s at %s for %s was cancelled.", greeting(ev.GuestName), ev.BookingID, title, stay)
	if ev.Refund.Amount > 0 {
		body += fmt.Sprintf(" A refund of %.2f %s is on its way.", ev.Refund.Major(), ev.Refund.Currency)
	}
	f.email(ctx, ev.BookingID, policies.Email{
		To:      ev.GuestEmail,
		Subject: "Booking cancelled: " + title,
		Text:    body + "\n",
	})
	f.inApp(ctx, policies.InAppNotification{
		UserID:    ev.GuestID,
		Kind:      KindBookingCancelled,
		Title:     "Booking cancelled",
		Body:      fmt.Sprintf("%s, %s", title, stay),
		BookingID: string(ev.BookingID),
	})
	if property != nil {
		f.inApp(ctx, policies.InAppNotification{
			UserID:    string(property.Host),
			Kind:      KindBookingCancelled,
			Title:     "Booking cancelled",
			Body:      fmt.Sprintf("%s, %s is free again", title, stay),
			BookingID: string(ev.BookingID),
		})
	}
}

func (f *Fanout) email(ctx context.Context, bookingID domainbooking.BookingID, msg policies.Email) {
	if f.Mailer == nil || strings.TrimSpace(msg.To) == "" {
		return
	}
	if err := f.Mailer.Send(ctx, msg); err != nil {
		f.warn("email notification failed", "booking_id", bookingID, "error", err)
	}
}

func (f *Fanout) inApp(ctx context.Context, n policies.InAppNotification) {
	if f.InApp == nil || n.UserID == "" {
		return
	}
	if err := f.InApp.Write(ctx, n); err != nil {
		f.warn("in-app notification failed", "booking_id", n.BookingID, "user_id", n.UserID, "error", err)
	}
}

func (f *Fanout) property(ctx context.Context, id properties.PropertyID) *properties.Property {
	if f.UoWFactory == nil {
		return nil
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, f.UoWFactory)
	if err != nil {
		f.warn("property lookup failed", "property_id", id, "error", err)
		return nil
	}
	if cleanup != nil {
		defer cleanup()
	}
	p, err := unit.Properties().ByID(execCtx, id)
	if err != nil {
		f.warn("property lookup failed", "property_id", id, "error", err)
		return nil
	}
	return p
}

func (f *Fanout) decode(rec outbox.EventRecord, out any) bool {
	if err := json.Unmarshal(rec.Payload, out); err != nil {
		f.warn("undecodable event dropped", "event", rec.Name, "event_id", rec.ID, "error", err)
		return false
	}
	return true
}

func (f *Fanout) warn(msg string, args ...any) {
	if f.Logger != nil {
		f.Logger.Warn(msg, args...)
	}
}

func propertyTitle(p *properties.Property, id properties.PropertyID) string {
	if p != nil && p.Title != "" {
		return p.Title
	}
	return "property " + string(id)
}

func stayText(dr daterange.DateRange) string {
	return fmt.Sprintf("%s to %s", daterange.Format(dr.CheckIn), daterange.Format(dr.CheckOut))
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

var _ outbox.Dispatcher = (*Fanout)(nil)
