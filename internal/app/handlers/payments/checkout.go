package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hiddystays/internal/app/dto"
	bookingapp "hiddystays/internal/app/handlers/booking"
	handlersupport "hiddystays/internal/app/handlers/support"
	"hiddystays/internal/app/outbox"
	"hiddystays/internal/app/policies"
	domainbooking "hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
)

// DefaultSessionTTL is the shortest expiry the payment provider accepts.
const DefaultSessionTTL = 30 * time.Minute

type SessionResult struct {
	BookingID string       `json:"bookingId"`
	SessionID string       `json:"sessionId"`
	URL       string       `json:"url"`
	Amount    int64        `json:"amount"`
	Currency  string       `json:"currency"`
	Total     dto.MoneyDTO `json:"total"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Reused    bool         `json:"reused"`
}

// Checkout sequences session issuance and payment confirmation. Every step
// runs inside the unit of work opened by the Transaction middleware.
type Checkout struct {
	Payments   policies.PaymentProvider
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	SessionTTL time.Duration
	Now        func() time.Time
}

type issueRequest struct {
	bookingID  string
	propertyID string
	guestID    string
	forceNew   bool
}

// issue runs the checkout steps: eligibility, conflict guard, authoritative
// price, then reuse of a live session or creation of a new one.
func (c *Checkout) issue(ctx context.Context, req issueRequest) (*SessionResult, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	if c.Payments == nil {
		return nil, fmt.Errorf("%w: no payment provider configured", policies.ErrPaymentProvider)
	}
	now := handlersupport.Clock(c.Now)

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(req.bookingID))
	if err != nil {
		return nil, err
	}
	if !b.OwnedBy(req.guestID) {
		return nil, bookingapp.ErrBookingNotOwned
	}
	if pid := strings.TrimSpace(req.propertyID); pid != "" && properties.PropertyID(pid) != b.PropertyID {
		return nil, fmt.Errorf("%w: booking belongs to another property", domainbooking.ErrNotEligible)
	}
	property, err := unit.Properties().ByID(ctx, b.PropertyID)
	if err != nil && !errors.Is(err, properties.ErrNotFound) {
		return nil, err
	}
	if err := b.EnsureCheckoutEligible(property); err != nil {
		return nil, err
	}
	if b.Range.CheckIn.Before(daterange.Day(now)) {
		return nil, fmt.Errorf("%w: check-in date has passed", domainbooking.ErrNotEligible)
	}

	if err := unit.Properties().Lock(ctx, property.ID); err != nil {
		return nil, err
	}
	guard := domainbooking.ConflictGuard{Bookings: unit.Bookings()}
	if err := guard.Check(ctx, b.PropertyID, b.Range, b.ID); err != nil {
		return nil, err
	}

	quote, err := unit.Pricing().Quote(ctx, pricing.QuoteInput{Property: property, Range: b.Range})
	if err != nil {
		if errors.Is(err, pricing.ErrOracleUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", pricing.ErrOracleUnavailable, err)
	}

	if !req.forceNew {
		if reused, ok := c.reusable(ctx, b, quote, now); ok {
			return reused, nil
		}
	}

	previous, hadLive := b.ActiveSession(now)
	expiresAt := now.Add(c.ttl())
	created, err := c.Payments.CreateSession(ctx, policies.CreateSessionInput{
		BookingID:      string(b.ID),
		PropertyID:     string(b.PropertyID),
		Description:    fmt.Sprintf("%s, %d nights (%s)", property.Title, b.Range.Nights(), b.Range),
		GuestEmail:     b.GuestEmail,
		Amount:         quote.Total,
		ExpiresAt:      expiresAt,
		IdempotencyKey: fmt.Sprintf("checkout-%s-v%d-%d", b.ID, b.Version, quote.Total.Amount),
	})
	if err != nil {
		return nil, providerError(err)
	}
	if created.ID == "" || created.URL == "" {
		return nil, fmt.Errorf("%w: session without id or url", policies.ErrPaymentProvider)
	}
	if !created.ExpiresAt.IsZero() {
		expiresAt = created.ExpiresAt
	}
	session := domainbooking.PaymentSession{ID: created.ID, URL: created.URL, Amount: quote.Total, ExpiresAt: expiresAt}
	if err := b.AttachSession(session, now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, c.Outbox, c.Encoder, b.Drain()); err != nil {
		return nil, err
	}
	if hadLive && previous.ID != session.ID {
		c.expire(ctx, b.ID, previous.ID)
	}
	if c.Logger != nil {
		c.Logger.Info("payment session issued", "booking_id", b.ID, "session_id", session.ID, "amount", session.Amount.Amount, "expires_at", session.ExpiresAt, "retry", req.forceNew)
	}
	return sessionResult(b.ID, session, false), nil
}

// reusable returns the live session unchanged when it was issued for the
// current price and the provider still reports it open. Any doubt means a new
// session is created instead.
func (c *Checkout) reusable(ctx context.Context, b *domainbooking.Booking, quote pricing.Quote, now time.Time) (*SessionResult, bool) {
	current, ok := b.ActiveSession(now)
	if !ok {
		return nil, false
	}
	if current.Amount != quote.Total {
		if c.Logger != nil {
			c.Logger.Info("price changed since session was issued", "booking_id", b.ID, "session_amount", current.Amount.Amount, "amount", quote.Total.Amount)
		}
		return nil, false
	}
	remote, err := c.Payments.RetrieveSession(ctx, current.ID)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("session lookup failed, issuing a new one", "booking_id", b.ID, "session_id", current.ID, "error", err)
		}
		return nil, false
	}
	if remote.Status != policies.SessionOpen || remote.Paid {
		return nil, false
	}
	return sessionResult(b.ID, current, true), true
}

// expire closes a superseded session at the provider. A failure is logged
// only: if the old session gets paid anyway, Confirm adopts or refunds it.
func (c *Checkout) expire(ctx context.Context, bookingID domainbooking.BookingID, sessionID string) {
	if err := c.Payments.ExpireSession(ctx, sessionID); err != nil && c.Logger != nil {
		c.Logger.Warn("superseded session not expired", "booking_id", bookingID, "session_id", sessionID, "error", err)
	}
}

func (c *Checkout) ttl() time.Duration {
	if c.SessionTTL > 0 {
		return c.SessionTTL
	}
	return DefaultSessionTTL
}

func sessionResult(id domainbooking.BookingID, s domainbooking.PaymentSession, reused bool) *SessionResult {
	return &SessionResult{
		BookingID: string(id),
		SessionID: s.ID,
		URL:       s.URL,
		Amount:    s.Amount.Amount,
		Currency:  s.Amount.Currency,
		Total:     dto.MapMoney(s.Amount),
		ExpiresAt: s.ExpiresAt,
		Reused:    reused,
	}
}

func providerError(err error) error {
	if errors.Is(err, policies.ErrPaymentProvider) {
		return err
	}
	return fmt.Errorf("%w: %v", policies.ErrPaymentProvider, err)
}
