package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
)

type stubRepo struct {
	active []*Booking
}

func (s stubRepo) ByID(context.Context, BookingID) (*Booking, error)       { return nil, ErrBookingNotFound }
func (s stubRepo) BySession(context.Context, string) (*Booking, error)     { return nil, ErrBookingNotFound }
func (s stubRepo) Save(context.Context, *Booking) error                    { return nil }
func (s stubRepo) ListByGuest(context.Context, string) ([]*Booking, error) { return nil, nil }
func (s stubRepo) ListDueForCompletion(context.Context, time.Time) ([]*Booking, error) {
	return nil, nil
}
func (s stubRepo) ListActiveByProperty(context.Context, properties.PropertyID) ([]*Booking, error) {
	return s.active, nil
}

func date(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := daterange.ParseDay(raw)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newTestBooking(t *testing.T, id, in, out string) *Booking {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBooking(CreateParams{
		ID:         BookingID(id),
		PropertyID: "prop-1",
		GuestID:    "guest-" + id,
		Range:      dr,
		Guests:     2,
		Total:      money.Must(30000, "USD"),
		CreatedAt:  date(t, "2024-08-01"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestGuardRejectsOverlappingStay(t *testing.T) {
	a := newTestBooking(t, "a", "2024-08-15", "2024-08-18")
	a.Status = StatusConfirmed
	guard := ConflictGuard{Bookings: stubRepo{active: []*Booking{a}}}

	candidate, _ := daterange.Parse("2024-08-17", "2024-08-20")
	err := guard.Check(context.Background(), "prop-1", candidate, "b")
	if !errors.Is(err, ErrPropertyUnavailable) {
		t.Fatalf("expected ErrPropertyUnavailable, got %v", err)
	}

	turnover, _ := daterange.Parse("2024-08-18", "2024-08-20")
	if err := guard.Check(context.Background(), "prop-1", turnover, "b"); err != nil {
		t.Fatalf("same-day turnover should pass: %v", err)
	}
}

func TestGuardSymmetricForSecondEvaluated(t *testing.T) {
	ranges := [][2]string{
		{"2024-08-10", "2024-08-12"},
		{"2024-08-11", "2024-08-14"},
		{"2024-08-12", "2024-08-13"},
		{"2024-08-01", "2024-08-30"},
	}
	for i, ra := range ranges {
		for j, rb := range ranges {
			if i == j {
				continue
			}
			a := newTestBooking(t, "a", ra[0], ra[1])
			b := newTestBooking(t, "b", rb[0], rb[1])
			overlap := daterange.RangesOverlap(a.Range.CheckIn, a.Range.CheckOut, b.Range.CheckIn, b.Range.CheckOut)
			err := ConflictGuard{Bookings: stubRepo{active: []*Booking{a}}}.Check(context.Background(), "prop-1", b.Range, b.ID)
			if overlap != errors.Is(err, ErrPropertyUnavailable) {
				t.Errorf("%v vs %v: overlap=%v err=%v", ra, rb, overlap, err)
			}
		}
	}
}

func TestGuardSkipsSelfAndInactive(t *testing.T) {
	self := newTestBooking(t, "a", "2024-08-15", "2024-08-18")
	cancelled := newTestBooking(t, "c", "2024-08-15", "2024-08-18")
	cancelled.Status = StatusCancelled
	guard := ConflictGuard{Bookings: stubRepo{active: []*Booking{self, cancelled}}}
	if err := guard.Check(context.Background(), "prop-1", self.Range, self.ID); err != nil {
		t.Fatalf("unexpected conflict: %v", err)
	}
}

func TestRefundPercentSchedule(t *testing.T) {
	checkIn := date(t, "2024-08-20")
	cases := []struct {
		today string
		want  int
	}{
		{"2024-08-10", 100},
		{"2024-08-12", 100},
		{"2024-08-13", 50}, // exactly 7 days
		{"2024-08-16", 50},
		{"2024-08-17", 50}, // exactly 3 days
		{"2024-08-18", 0},
		{"2024-08-19", 0},
		{"2024-08-25", 0},
	}
	for _, tc := range cases {
		if got := RefundPercent(checkIn, date(t, tc.today)); got != tc.want {
			t.Errorf("%s: got %d want %d", tc.today, got, tc.want)
		}
	}
}

func TestRefundForUsesPaidTotal(t *testing.T) {
	b := newTestBooking(t, "a", "2024-08-20", "2024-08-23")
	b.Total = money.Must(33333, "USD")
	if _, amt := b.RefundFor(date(t, "2024-08-10")); amt.Amount != 0 {
		t.Fatalf("unpaid booking refund = %d", amt.Amount)
	}
	b.Payment = PaymentPaid
	pct, amt := b.RefundFor(date(t, "2024-08-16"))
	if pct != 50 || amt.Amount != 16667 {
		t.Fatalf("got %d%% %d", pct, amt.Amount)
	}
}

func TestCheckoutLifecycle(t *testing.T) {
	now := date(t, "2024-08-01")
	prop := &properties.Property{ID: "prop-1", Active: true}
	b := newTestBooking(t, "a", "2024-08-15", "2024-08-18")
	if err := b.EnsureCheckoutEligible(prop); err != nil {
		t.Fatal(err)
	}
	if b.CheckoutStage(now) != string(StatusPending) {
		t.Fatalf("stage = %s", b.CheckoutStage(now))
	}

	sess := PaymentSession{ID: "cs_1", URL: "https://pay/cs_1", Amount: money.Must(30000, "USD"), ExpiresAt: now.Add(30 * time.Minute)}
	if err := b.AttachSession(sess, now); err != nil {
		t.Fatal(err)
	}
	if b.CheckoutStage(now) != StageAwaitingPayment {
		t.Fatalf("stage = %s", b.CheckoutStage(now))
	}
	if _, ok := b.ActiveSession(now.Add(31 * time.Minute)); ok {
		t.Fatal("expired session must count as absent")
	}
	if got, ok := b.ActiveSession(now.Add(time.Minute)); !ok || got.ID != "cs_1" {
		t.Fatalf("active session = %+v %v", got, ok)
	}

	if err := b.ConfirmPayment("pi_1", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if b.Status != StatusConfirmed || b.Payment != PaymentPaid {
		t.Fatalf("status %s payment %s", b.Status, b.Payment)
	}
	if err := b.EnsureCheckoutEligible(prop); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("paid booking must be ineligible, got %v", err)
	}
	if _, ok := b.ActiveSession(now); ok {
		t.Fatal("consumed session must not be active")
	}

	if err := b.Complete(date(t, "2024-08-17")); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("completing mid-stay should fail, got %v", err)
	}
	if err := b.Complete(date(t, "2024-08-18")); err != nil {
		t.Fatal(err)
	}

	names := []string{}
	for _, ev := range b.PendingEvents() {
		names = append(names, ev.EventName())
	}
	want := []string{EventRequested, EventSessionIssued, EventConfirmed, EventCompleted}
	if len(names) != len(want) {
		t.Fatalf("events = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events = %v", names)
		}
	}
}

func TestEligibilityRejectsInactivePropertyAndCancelled(t *testing.T) {
	b := newTestBooking(t, "a", "2024-08-15", "2024-08-18")
	if err := b.EnsureCheckoutEligible(&properties.Property{Active: false}); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("got %v", err)
	}
	if err := b.Cancel("changed plans", money.Money{Currency: "USD"}, date(t, "2024-08-02")); err != nil {
		t.Fatal(err)
	}
	if err := b.EnsureCheckoutEligible(&properties.Property{Active: true}); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("got %v", err)
	}
	if err := b.Cancel("again", money.Money{}, date(t, "2024-08-02")); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double cancel: %v", err)
	}
}

func TestCancelRefundRequiresPayment(t *testing.T) {
	b := newTestBooking(t, "a", "2024-08-15", "2024-08-18")
	if err := b.Cancel("x", money.Must(100, "USD"), date(t, "2024-08-02")); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("got %v", err)
	}
	b.Payment = PaymentPaid
	b.Status = StatusConfirmed
	if err := b.Cancel("x", money.Must(100, "USD"), date(t, "2024-08-02")); err != nil {
		t.Fatal(err)
	}
	if b.Payment != PaymentRefunded || b.Refunded.Amount != 100 {
		t.Fatalf("payment %s refunded %d", b.Payment, b.Refunded.Amount)
	}
}

func TestReturnPaymentRecordsOnce(t *testing.T) {
	b := newTestBooking(t, "a", "2024-08-15", "2024-08-18")
	now := date(t, "2024-08-02")
	if err := b.Cancel("changed plans", money.Money{Currency: "USD"}, now); err != nil {
		t.Fatal(err)
	}
	b.Drain()

	if b.Settled("pi_late") {
		t.Fatal("unknown payment reported settled")
	}
	if err := b.ReturnPayment("cs_1", "pi_late", money.Must(30000, "USD"), now); err != nil {
		t.Fatal(err)
	}
	if err := b.ReturnPayment("cs_1", "pi_late", money.Must(30000, "USD"), now); err != nil {
		t.Fatal(err)
	}
	if !b.Settled("pi_late") || len(b.ReturnedPayments) != 1 {
		t.Fatalf("returned = %v", b.ReturnedPayments)
	}
	evs := b.PendingEvents()
	if len(evs) != 1 || evs[0].EventName() != EventPaymentReturn {
		t.Fatalf("events = %v", evs)
	}
	if err := b.ReturnPayment("cs_2", "", money.Must(1, "USD"), now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("empty payment ref: %v", err)
	}
}
