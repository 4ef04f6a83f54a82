package payments_test

import (
	"context"
	"testing"

	"hiddystays/internal/app/commands"
	bookingapp "hiddystays/internal/app/handlers/booking"
	"hiddystays/internal/app/handlers/payments"
	"hiddystays/internal/app/policies"
	"hiddystays/internal/app/uow"
	domainbooking "hiddystays/internal/domain/booking"
)

func (h *harness) cancel(t *testing.T, guest, bookingID string) *bookingapp.CancelBookingResult {
	t.Helper()
	res, err := commands.Dispatch[bookingapp.CancelBookingCommand, *bookingapp.CancelBookingResult](context.Background(), h.bus, bookingapp.CancelBookingCommand{
		GuestID: guest, BookingID: bookingID, Refund: true, Reason: "plans changed",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	return res
}

func (h *harness) retry(t *testing.T, guest, bookingID string) *payments.SessionResult {
	t.Helper()
	res, err := commands.Dispatch[payments.RetryPaymentCommand, *payments.SessionResult](context.Background(), h.bus, payments.RetryPaymentCommand{GuestID: guest, BookingID: bookingID})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	return res
}

func (h *harness) load(t *testing.T, bookingID string) *domainbooking.Booking {
	t.Helper()
	ctx := context.Background()
	unit, err := h.store.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	execCtx := uow.Bind(ctx, unit)
	defer func() { _ = unit.Rollback(execCtx) }()
	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(bookingID))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func (h *harness) count(name string) int {
	n := 0
	for _, ev := range h.published() {
		if ev == name {
			n++
		}
	}
	return n
}

func TestCancelExpiresOpenSession(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	sess := h.createSession(t, "guest-a", id)

	h.cancel(t, "guest-a", id)

	remote, err := h.provider.RetrieveSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if remote.Status != policies.SessionExpired {
		t.Fatalf("session status after cancel = %s", remote.Status)
	}
	if _, err := h.provider.MarkPaid(sess.SessionID); err == nil {
		t.Fatal("cancelled booking's session must not be payable")
	}
}

func TestRetryExpiresSupersededSession(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	first := h.createSession(t, "guest-a", id)
	second := h.retry(t, "guest-a", id)

	if _, err := h.provider.MarkPaid(first.SessionID); err == nil {
		t.Fatal("superseded session must not be payable")
	}
	if _, err := h.provider.MarkPaid(second.SessionID); err != nil {
		t.Fatalf("current session: %v", err)
	}
}

func TestPaymentAfterCancelIsRefundedInFull(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	sess := h.createSession(t, "guest-a", id)

	// The guest pays the hosted page while the cancellation is in flight.
	paid, err := h.provider.MarkPaid(sess.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if res := h.cancel(t, "guest-a", id); res.Refund.Amount != 0 {
		t.Fatalf("nothing was settled yet, cancel refunded %+v", res.Refund)
	}

	res := h.confirm(t, "", sess.SessionID)
	if res.Status != string(domainbooking.StatusCancelled) || res.Returned == nil || res.Returned.Amount != sess.Amount {
		t.Fatalf("confirm = %+v", res)
	}
	refunds := h.provider.Refunds()
	if len(refunds) != 1 || refunds[0].PaymentID != paid.PaymentID || refunds[0].Amount.Amount != sess.Amount {
		t.Fatalf("refunds = %+v", refunds)
	}

	again := h.confirm(t, "guest-a", sess.SessionID)
	if !again.AlreadyProcessed || len(h.provider.Refunds()) != 1 {
		t.Fatalf("redelivery refunded again: %+v refunds=%d", again, len(h.provider.Refunds()))
	}
	if n := h.count(domainbooking.EventPaymentReturn); n != 1 {
		t.Fatalf("payment_returned published %d times", n)
	}
	if b := h.load(t, id); !b.Settled(paid.PaymentID) {
		t.Fatalf("returned payment not recorded: %+v", b.ReturnedPayments)
	}
}

func TestPayingBothSessionsRefundsTheSecondCapture(t *testing.T) {
	h := newHarness(t)
	id := h.request(t, "guest-a", "2024-08-15", "2024-08-18")
	first := h.createSession(t, "guest-a", id)

	// First page paid just before the guest asked for a new one.
	firstPaid, err := h.provider.MarkPaid(first.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	second := h.retry(t, "guest-a", id)
	secondPaid, err := h.provider.MarkPaid(second.SessionID)
	if err != nil {
		t.Fatal(err)
	}

	confirmed := h.confirm(t, "guest-a", second.SessionID)
	if confirmed.Status != string(domainbooking.StatusConfirmed) || confirmed.Returned != nil {
		t.Fatalf("confirm second = %+v", confirmed)
	}
	late := h.confirm(t, "", first.SessionID)
	if late.Status != string(domainbooking.StatusConfirmed) || !late.Paid || late.Returned == nil || late.Returned.Amount != first.Amount {
		t.Fatalf("confirm first = %+v", late)
	}

	refunds := h.provider.Refunds()
	if len(refunds) != 1 || refunds[0].PaymentID != firstPaid.PaymentID {
		t.Fatalf("refunds = %+v", refunds)
	}
	b := h.load(t, id)
	if b.PaymentRef != secondPaid.PaymentID || b.Payment != domainbooking.PaymentPaid {
		t.Fatalf("booking settled by %s (%s)", b.PaymentRef, b.Payment)
	}
	if n := h.count(domainbooking.EventConfirmed); n != 1 {
		t.Fatalf("booking.confirmed published %d times", n)
	}
}
