package notifications_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"hiddystays/internal/app/notifications"
	"hiddystays/internal/app/outbox"
	"hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
	pricinginfra "hiddystays/internal/infra/pricing"
	"hiddystays/internal/infra/storage/memory"
)

func TestFanoutNotifiesGuestAndHost(t *testing.T) {
	store := memory.NewStore()
	store.Pricing = pricinginfra.Local{}
	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	prop, err := properties.New(properties.CreateParams{
		ID: "prop-1", Host: "host-1", Title: "Canal house", NightlyRate: money.Must(10000, "USD"), Active: true, Now: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	store.PutProperty(prop)

	mailbox := &memory.Mailbox{}
	inApp := &memory.InAppStore{}
	fanout := &notifications.Fanout{UoWFactory: store, Mailer: mailbox, InApp: inApp}

	dr, _ := daterange.Parse("2024-08-10", "2024-08-12")
	rec, err := outbox.JSONEventEncoder{}.Encode(booking.BookingCancelled{
		BookingID: "bk-1", PropertyID: "prop-1", GuestID: "guest-a", GuestEmail: "a@example.com", GuestName: "Ada",
		Range: dr, Refund: money.Must(5000, "USD"), Reason: "flight", At: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := fanout.Dispatch(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	sent := mailbox.Sent()
	if len(sent) != 1 || sent[0].To != "a@example.com" || !strings.Contains(sent[0].Text, "50.00 USD") {
		t.Fatalf("emails = %+v", sent)
	}
	if len(inApp.ForUser("guest-a")) != 1 || len(inApp.ForUser("host-1")) != 1 {
		t.Fatalf("in-app guest=%d host=%d", len(inApp.ForUser("guest-a")), len(inApp.ForUser("host-1")))
	}

	ignored := outbox.EventRecord{ID: "x", Name: booking.EventRequested, Payload: []byte(`{}`)}
	if err := fanout.Dispatch(context.Background(), ignored); err != nil {
		t.Fatal(err)
	}
	if len(mailbox.Sent()) != 1 {
		t.Fatal("requested event must not notify")
	}
}
