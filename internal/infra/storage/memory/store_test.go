package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"hiddystays/internal/app/outbox"
	"hiddystays/internal/app/uow"
	"hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
	pricinginfra "hiddystays/internal/infra/pricing"
)

func newTestStore() *Store {
	s := NewStore()
	s.Pricing = pricinginfra.Local{}
	s.Outbox = NewOutbox(nil)
	return s
}

func testBooking(t *testing.T, id string) *booking.Booking {
	t.Helper()
	dr, err := daterange.Parse("2024-08-15", "2024-08-18")
	if err != nil {
		t.Fatal(err)
	}
	b, err := booking.NewBooking(booking.CreateParams{
		ID: booking.BookingID(id), PropertyID: "prop-1", GuestID: "guest-1", Range: dr, Guests: 1,
		Total: money.Must(1000, "USD"), CreatedAt: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func begin(t *testing.T, s *Store, readOnly bool) (uow.UnitOfWork, context.Context) {
	t.Helper()
	unit, err := s.Begin(context.Background(), uow.TxOptions{ReadOnly: readOnly})
	if err != nil {
		t.Fatal(err)
	}
	return unit, uow.Bind(context.Background(), unit)
}

func TestRollbackDiscardsWritesAndEvents(t *testing.T) {
	s := newTestStore()
	unit, ctx := begin(t, s, false)
	if err := unit.Bookings().Save(ctx, testBooking(t, "bk-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Outbox.Add(ctx, outbox.EventRecord{ID: "evt-1", Name: "booking.requested"}); err != nil {
		t.Fatal(err)
	}
	if _, err := unit.Bookings().ByID(ctx, "bk-1"); err != nil {
		t.Fatalf("unit must see its own write: %v", err)
	}
	if err := unit.Rollback(ctx); err != nil {
		t.Fatal(err)
	}

	reader, rctx := begin(t, s, true)
	defer reader.Rollback(rctx)
	if _, err := reader.Bookings().ByID(rctx, "bk-1"); !errors.Is(err, booking.ErrBookingNotFound) {
		t.Fatalf("rolled back booking visible: %v", err)
	}
	if len(s.Outbox.Pending()) != 0 {
		t.Fatal("rolled back event released")
	}
}

func TestCommitPublishesStagedEvents(t *testing.T) {
	s := newTestStore()
	unit, ctx := begin(t, s, false)
	if err := unit.Bookings().Save(ctx, testBooking(t, "bk-1")); err != nil {
		t.Fatal(err)
	}
	_ = s.Outbox.Add(ctx, outbox.EventRecord{ID: "evt-1", Name: "booking.requested"})
	if len(s.Outbox.Pending()) != 0 {
		t.Fatal("event released before commit")
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if got := s.Outbox.Pending(); len(got) != 1 || got[0].ID != "evt-1" {
		t.Fatalf("pending = %+v", got)
	}
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	s := newTestStore()
	unit, ctx := begin(t, s, false)
	b := testBooking(t, "bk-1")
	if err := unit.Bookings().Save(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	unit, ctx = begin(t, s, false)
	defer unit.Rollback(ctx)
	stale := testBooking(t, "bk-1")
	if err := unit.Bookings().Save(ctx, stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("got %v", err)
	}
	fresh, err := unit.Bookings().ByID(ctx, "bk-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := unit.Bookings().Save(ctx, fresh); err != nil || fresh.Version != 2 {
		t.Fatalf("save fresh: version %d err %v", fresh.Version, err)
	}
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	s := newTestStore()
	unit, ctx := begin(t, s, true)
	defer unit.Rollback(ctx)
	if err := unit.Bookings().Save(ctx, testBooking(t, "bk-1")); !errors.Is(err, ErrReadOnlyUnit) {
		t.Fatalf("got %v", err)
	}
}

func TestSessionIndexFollowsLatestSession(t *testing.T) {
	s := newTestStore()
	unit, ctx := begin(t, s, false)
	b := testBooking(t, "bk-1")
	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	_ = b.AttachSession(booking.PaymentSession{ID: "cs_1", Amount: b.Total, ExpiresAt: now.Add(time.Hour)}, now)
	if err := unit.Bookings().Save(ctx, b); err != nil {
		t.Fatal(err)
	}
	_ = unit.Commit(ctx)

	unit, ctx = begin(t, s, false)
	_ = b.AttachSession(booking.PaymentSession{ID: "cs_2", Amount: b.Total, ExpiresAt: now.Add(time.Hour)}, now)
	if err := unit.Bookings().Save(ctx, b); err != nil {
		t.Fatal(err)
	}
	_ = unit.Commit(ctx)

	reader, rctx := begin(t, s, true)
	defer reader.Rollback(rctx)
	if _, err := reader.Bookings().BySession(rctx, "cs_1"); !errors.Is(err, booking.ErrBookingNotFound) {
		t.Fatalf("superseded session still indexed: %v", err)
	}
	got, err := reader.Bookings().BySession(rctx, "cs_2")
	if err != nil || got.ID != "bk-1" {
		t.Fatalf("BySession = %v, %v", got, err)
	}
}
