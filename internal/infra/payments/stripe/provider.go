package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"hiddystays/internal/app/policies"
	"hiddystays/internal/domain/shared/money"
)

const metadataBookingID = "booking_id"

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Provider talks to Stripe Checkout. Every failure is wrapped in
// policies.ErrPaymentProvider.
type Provider struct {
	api *client.API
	cfg Config
}

func New(cfg Config) *Provider {
	return newWithBackends(cfg, nil)
}

func newWithBackends(cfg Config, backends *stripego.Backends) *Provider {
	return &Provider{api: client.New(cfg.SecretKey, backends), cfg: cfg}
}

func (p *Provider) CreateSession(ctx context.Context, in policies.CreateSessionInput) (policies.ProviderSession, error) {
	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL:        stripego.String(p.cfg.SuccessURL),
		CancelURL:         stripego.String(p.cfg.CancelURL),
		ClientReferenceID: stripego.String(in.BookingID),
		ExpiresAt:         stripego.Int64(in.ExpiresAt.Unix()),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			Quantity: stripego.Int64(1),
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(strings.ToLower(in.Amount.Currency)),
				UnitAmount: stripego.Int64(in.Amount.Amount),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(in.Description),
				},
			},
		}},
		PaymentIntentData: &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataBookingID: in.BookingID, "property_id": in.PropertyID},
		},
	}
	if in.GuestEmail != "" {
		params.CustomerEmail = stripego.String(in.GuestEmail)
	}
	params.Context = ctx
	params.AddMetadata(metadataBookingID, in.BookingID)
	params.AddMetadata("property_id", in.PropertyID)
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return policies.ProviderSession{}, wrap("create session", err)
	}
	return toSession(s), nil
}

func (p *Provider) RetrieveSession(ctx context.Context, sessionID string) (policies.ProviderSession, error) {
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var serr *stripego.Error
		if errors.As(err, &serr) && serr.Code == stripego.ErrorCodeResourceMissing {
			return policies.ProviderSession{}, fmt.Errorf("%w: %s", policies.ErrSessionNotFound, sessionID)
		}
		return policies.ProviderSession{}, wrap("retrieve session", err)
	}
	return toSession(s), nil
}

func (p *Provider) Refund(ctx context.Context, paymentID string, amount money.Money) error {
	if amount.Amount <= 0 {
		return nil
	}
	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(paymentID),
		Amount:        stripego.Int64(amount.Amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("refund-%s-%d", paymentID, amount.Amount))
	if _, err := p.api.Refunds.New(params); err != nil {
		return wrap("refund", err)
	}
	return nil
}

func (p *Provider) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripego.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := p.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		var serr *stripego.Error
		if errors.As(err, &serr) && serr.Code == stripego.ErrorCodeResourceMissing {
			return fmt.Errorf("%w: %s", policies.ErrSessionNotFound, sessionID)
		}
		return wrap("expire session", err)
	}
	return nil
}

// Verify checks the Stripe-Signature header and extracts the session id of
// checkout events.
func (p *Provider) Verify(payload []byte, signature string) (policies.PaymentEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return policies.PaymentEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := policies.PaymentEvent{ID: evt.ID, Type: string(evt.Type)}
	if strings.HasPrefix(out.Type, "checkout.session.") && evt.Data != nil {
		var s stripego.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return policies.PaymentEvent{}, fmt.Errorf("%w: decode session: %v", ErrInvalidSignature, err)
		}
		out.SessionID = s.ID
	}
	return out, nil
}

var ErrInvalidSignature = errors.New("stripe: invalid webhook payload")

func toSession(s *stripego.CheckoutSession) policies.ProviderSession {
	out := policies.ProviderSession{
		ID:     s.ID,
		URL:    s.URL,
		Amount: money.Money{Amount: s.AmountTotal, Currency: strings.ToUpper(string(s.Currency))},
		Status: policies.SessionStatus(s.Status),
		Paid:   s.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid,
	}
	if s.PaymentIntent != nil {
		out.PaymentID = s.PaymentIntent.ID
	}
	if s.Metadata != nil {
		out.BookingID = s.Metadata[metadataBookingID]
	}
	if out.BookingID == "" {
		out.BookingID = s.ClientReferenceID
	}
	if s.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return out
}

func wrap(op string, err error) error {
	var serr *stripego.Error
	if errors.As(err, &serr) {
		return fmt.Errorf("%w: %s: %s (%s)", policies.ErrPaymentProvider, op, serr.Msg, serr.Code)
	}
	return fmt.Errorf("%w: %s: %v", policies.ErrPaymentProvider, op, err)
}

var (
	_ policies.PaymentProvider = (*Provider)(nil)
	_ policies.WebhookVerifier = (*Provider)(nil)
)
