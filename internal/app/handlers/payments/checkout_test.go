package payments_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hiddystays/internal/app/commands"
	bookingapp "hiddystays/internal/app/handlers/booking"
	"hiddystays/internal/app/handlers/payments"
	"hiddystays/internal/app/middleware"
	"hiddystays/internal/app/outbox"
	"hiddystays/internal/app/uow"
	domainbooking "hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
	pricinginfra "hiddystays/internal/infra/pricing"
	"hiddystays/internal/infra/storage/memory"
)

type harness struct {
	store    *memory.Store
	provider *memory.PaymentProvider
	bus      commands.Bus

	mu     sync.Mutex
	now    time.Time
	events []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{now: time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)}
	h.store = memory.NewStore()
	h.store.Pricing = pricinginfra.Local{}
	h.store.Outbox = memory.NewOutbox(outbox.DispatcherFunc(func(_ context.Context, rec outbox.EventRecord) error {
		h.mu.Lock()
		h.events = append(h.events, rec.Name)
		h.mu.Unlock()
		return nil
	}))
	prop, err := properties.New(properties.CreateParams{
		ID:          "prop-1",
		Host:        "host-1",
		Title:       "Harbour flat",
		NightlyRate: money.Must(14500, "USD"),
		GuestsLimit: 4,
		Active:      true,
		Now:         h.now,
	})
	if err != nil {
		t.Fatal(err)
	}
	h.store.PutProperty(prop)

	h.provider = memory.NewPaymentProvider()
	h.provider.Now = h.clock

	base := commands.NewInMemoryBus()
	encoder := outbox.JSONEventEncoder{}
	commands.RegisterHandler(base, &bookingapp.RequestBookingHandler{Outbox: h.store.Outbox, Encoder: encoder, Now: h.clock})
	commands.RegisterHandler(base, &bookingapp.CancelBookingHandler{Payments: h.provider, Outbox: h.store.Outbox, Encoder: encoder, Now: h.clock})
	(&payments.Checkout{Payments: h.provider, Outbox: h.store.Outbox, Encoder: encoder, Now: h.clock}).Register(base)
	h.bus = middleware.ChainCommands(base,
		middleware.OutboxFlush(h.store.Outbox, nil),
		middleware.Transaction(h.store, nil),
	)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.now = h.now.Add(d)
	h.mu.Unlock()
}

func (h *harness) published() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func (h *harness) request(t *testing.T, guest, in, out string) string {
	t.Helper()
	res, err := commands.Dispatch[bookingapp.RequestBookingCommand, *bookingapp.RequestBookingResult](context.Background(), h.bus, bookingapp.RequestBookingCommand{
		GuestID:    guest,
		GuestEmail: guest + "@example.com",
		PropertyID: "prop-1",
		CheckIn:    in,
		CheckOut:   out,
		Guests:     2,
	})
	if err != nil {
		t.Fatalf("request booking: %v", err)
	}
	return res.BookingID
}

func (h *harness) createSession(t *testing.T, guest, bookingID string) *payments.SessionResult {
	t.Helper()
	res, err := commands.Dispatch[payments.CreateSessionCommand, *payments.SessionResult](context.Background(), h.bus, payments.CreateSessionCommand{GuestID: guest, BookingID: bookingID})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return res
}

func (h *harness) confirm(t *testing.T, guest, sessionID string) *payments.ConfirmResult {
	t.Helper()
	res, err := commands.Dispatch[payments.ConfirmPaymentCommand, *payments.ConfirmResult](context.Background(), h.bus, payments.ConfirmPaymentCommand{SessionID: sessionID, GuestID: guest, Source: payments.SourceVerify})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	return res
}

func TestCreateSessionReusesLiveSession(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")

	first := h.createSession(t, "guest-a", id)
	if first.Reused || first.Amount != 3*14500 {
		t.Fatalf("first session = %+v", first)
	}
	second := h.createSession(t, "guest-a", id)
	if !second.Reused || second.SessionID != first.SessionID || second.URL != first.URL {
		t.Fatalf("expected reuse of %s, got %+v", first.SessionID, second)
	}

	retried, err := commands.Dispatch[payments.RetryPaymentCommand, *payments.SessionResult](context.Background(), h.bus, payments.RetryPaymentCommand{GuestID: "guest-a", BookingID: id})
	if err != nil {
		t.Fatal(err)
	}
	if retried.Reused || retried.SessionID == first.SessionID {
		t.Fatalf("retry must issue a new session, got %+v", retried)
	}
}

func TestCreateSessionAfterExpiryIssuesNew(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	first := h.createSession(t, "guest-a", id)

	h.advance(payments.DefaultSessionTTL + time.Minute)
	second := h.createSession(t, "guest-a", id)
	if second.Reused || second.SessionID == first.SessionID {
		t.Fatalf("expired session must not be reused: %+v", second)
	}
}

func TestCreateSessionRejectsOtherGuest(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	_, err := commands.Dispatch[payments.CreateSessionCommand, *payments.SessionResult](context.Background(), h.bus, payments.CreateSessionCommand{GuestID: "guest-b", BookingID: id})
	if !errors.Is(err, bookingapp.ErrBookingNotOwned) {
		t.Fatalf("got %v", err)
	}
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	sess := h.createSession(t, "guest-a", id)

	pending := h.confirm(t, "guest-a", sess.SessionID)
	if pending.Paid || pending.Stage != domainbooking.StageAwaitingPayment {
		t.Fatalf("unpaid session confirmed: %+v", pending)
	}

	if _, err := h.provider.MarkPaid(sess.SessionID); err != nil {
		t.Fatal(err)
	}
	res := h.confirm(t, "guest-a", sess.SessionID)
	if !res.Paid || res.Status != string(domainbooking.StatusConfirmed) || res.AlreadyProcessed {
		t.Fatalf("confirm = %+v", res)
	}
	again := h.confirm(t, "", sess.SessionID)
	if !again.AlreadyProcessed || again.Status != string(domainbooking.StatusConfirmed) {
		t.Fatalf("second confirm = %+v", again)
	}

	confirmed := 0
	for _, name := range h.published() {
		if name == domainbooking.EventConfirmed {
			confirmed++
		}
	}
	if confirmed != 1 {
		t.Fatalf("booking.confirmed published %d times: %v", confirmed, h.published())
	}
}

func TestConfirmRefundsWhenDatesWereLost(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	sess := h.createSession(t, "guest-a", id)

	// Another guest's confirmed stay lands on the same nights.
	ctx := context.Background()
	unit, err := h.store.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatal(err)
	}
	execCtx := uow.Bind(ctx, unit)
	dr, _ := daterange.Parse("2024-08-16", "2024-08-19")
	other, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID: "other", PropertyID: "prop-1", GuestID: "guest-b", Range: dr, Guests: 1,
		Total: money.Must(43500, "USD"), CreatedAt: h.clock(),
	})
	if err != nil {
		t.Fatal(err)
	}
	other.Status = domainbooking.StatusConfirmed
	other.Payment = domainbooking.PaymentPaid
	if err := unit.Bookings().Save(execCtx, other); err != nil {
		t.Fatal(err)
	}
	if err := unit.Commit(execCtx); err != nil {
		t.Fatal(err)
	}

	if _, err := h.provider.MarkPaid(sess.SessionID); err != nil {
		t.Fatal(err)
	}
	res := h.confirm(t, "guest-a", sess.SessionID)
	if !res.Conflict || res.Status != string(domainbooking.StatusCancelled) || res.PaymentStatus != string(domainbooking.PaymentRefunded) {
		t.Fatalf("confirm = %+v", res)
	}
	refunds := h.provider.Refunds()
	if len(refunds) != 1 || refunds[0].Amount.Amount != sess.Amount {
		t.Fatalf("refunds = %+v", refunds)
	}
}

func TestCancelPaidBookingRefundsByPolicy(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	sess := h.createSession(t, "guest-a", id)
	if _, err := h.provider.MarkPaid(sess.SessionID); err != nil {
		t.Fatal(err)
	}
	h.confirm(t, "guest-a", sess.SessionID)

	// Five days before check-in earns half back.
	h.advance(9 * 24 * time.Hour)
	res, err := commands.Dispatch[bookingapp.CancelBookingCommand, *bookingapp.CancelBookingResult](context.Background(), h.bus, bookingapp.CancelBookingCommand{
		GuestID: "guest-a", BookingID: id, Refund: true, Reason: "flight cancelled",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.RefundPercent != 50 || res.Refund.Amount != sess.Amount/2 || res.PaymentStatus != string(domainbooking.PaymentRefunded) {
		t.Fatalf("cancel = %+v", res)
	}

	// The nights are free again.
	h.request(t, "guest-b", "2024-08-15", "2024-08-18")
}

func TestFailedCommandLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	before := len(h.published())

	_, err := commands.Dispatch[bookingapp.RequestBookingCommand, *bookingapp.RequestBookingResult](context.Background(), h.bus, bookingapp.RequestBookingCommand{
		GuestID: "guest-b", PropertyID: "prop-1", CheckIn: "2024-08-17", CheckOut: "2024-08-20", Guests: 1,
	})
	if !errors.Is(err, domainbooking.ErrPropertyUnavailable) {
		t.Fatalf("got %v", err)
	}
	if got := len(h.published()); got != before {
		t.Fatalf("rejected request published %d events", got-before)
	}
	if pending := h.store.Outbox.Pending(); len(pending) != 0 {
		t.Fatalf("pending events after rollback: %d", len(pending))
	}
}
