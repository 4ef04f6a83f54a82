package policies

import (
	"context"
	"errors"
	"time"

	"hiddystays/internal/domain/shared/money"
)

// ErrPaymentProvider wraps any failure talking to the payment provider. The
// caller may retry.
var ErrPaymentProvider = errors.New("payments: provider request failed")

// ErrSessionNotFound is returned by RetrieveSession for ids the provider
// does not know.
var ErrSessionNotFound = errors.New("payments: checkout session not found")

type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
	SessionExpired  SessionStatus = "expired"
)

type CreateSessionInput struct {
	BookingID   string
	PropertyID  string
	Description string
	GuestEmail  string
	Amount      money.Money
	ExpiresAt   time.Time
	// IdempotencyKey lets the provider collapse retried creates.
	IdempotencyKey string
}

type ProviderSession struct {
	ID        string
	URL       string
	Amount    money.Money
	Status    SessionStatus
	Paid      bool
	PaymentID string
	BookingID string
	ExpiresAt time.Time
}

type PaymentProvider interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (ProviderSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (ProviderSession, error)
	Refund(ctx context.Context, paymentID string, amount money.Money) error
	// ExpireSession closes an open session so it can no longer be paid.
	// Sessions that are already complete fail with ErrPaymentProvider.
	ExpireSession(ctx context.Context, sessionID string) error
}

// PaymentEvent is a verified provider webhook reduced to what checkout needs.
type PaymentEvent struct {
	ID        string
	Type      string
	SessionID string
}

type WebhookVerifier interface {
	Verify(payload []byte, signature string) (PaymentEvent, error)
}
