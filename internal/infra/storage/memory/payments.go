package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"hiddystays/internal/app/policies"
	"hiddystays/internal/domain/shared/money"
)

// PaymentProvider simulates a hosted checkout provider. Sessions are paid
// with MarkPaid.
type PaymentProvider struct {
	mu       sync.Mutex
	sessions map[string]policies.ProviderSession
	byKey    map[string]string
	refunds  []Refund
	BaseURL  string
	Now      func() time.Time

	CreateErr   error
	RetrieveErr error
	RefundErr   error
	ExpireErr   error
}

type Refund struct {
	PaymentID string
	Amount    money.Money
}

func NewPaymentProvider() *PaymentProvider {
	return &PaymentProvider{
		sessions: make(map[string]policies.ProviderSession),
		byKey:    make(map[string]string),
		BaseURL:  "https://checkout.local/pay/",
	}
}

func (p *PaymentProvider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *PaymentProvider) CreateSession(ctx context.Context, in policies.CreateSessionInput) (policies.ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return policies.ProviderSession{}, p.CreateErr
	}
	if in.IdempotencyKey != "" {
		if id, ok := p.byKey[in.IdempotencyKey]; ok {
			return p.current(id), nil
		}
	}
	id := "cs_test_" + uuid.NewString()
	s := policies.ProviderSession{
		ID:        id,
		URL:       p.BaseURL + id,
		Amount:    in.Amount,
		Status:    policies.SessionOpen,
		BookingID: in.BookingID,
		ExpiresAt: in.ExpiresAt,
	}
	p.sessions[id] = s
	if in.IdempotencyKey != "" {
		p.byKey[in.IdempotencyKey] = id
	}
	return s, nil
}

func (p *PaymentProvider) RetrieveSession(ctx context.Context, sessionID string) (policies.ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RetrieveErr != nil {
		return policies.ProviderSession{}, p.RetrieveErr
	}
	if _, ok := p.sessions[sessionID]; !ok {
		return policies.ProviderSession{}, fmt.Errorf("%w: %s", policies.ErrSessionNotFound, sessionID)
	}
	return p.current(sessionID), nil
}

func (p *PaymentProvider) current(id string) policies.ProviderSession {
	s := p.sessions[id]
	if s.Status == policies.SessionOpen && !s.ExpiresAt.IsZero() && !p.now().Before(s.ExpiresAt) {
		s.Status = policies.SessionExpired
		p.sessions[id] = s
	}
	return s
}

func (p *PaymentProvider) Refund(ctx context.Context, paymentID string, amount money.Money) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RefundErr != nil {
		return p.RefundErr
	}
	p.refunds = append(p.refunds, Refund{PaymentID: paymentID, Amount: amount})
	return nil
}

func (p *PaymentProvider) ExpireSession(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ExpireErr != nil {
		return p.ExpireErr
	}
	if _, ok := p.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", policies.ErrSessionNotFound, sessionID)
	}
	s := p.current(sessionID)
	switch s.Status {
	case policies.SessionComplete:
		return fmt.Errorf("%w: session %s is already complete", policies.ErrPaymentProvider, sessionID)
	case policies.SessionOpen:
		s.Status = policies.SessionExpired
		p.sessions[sessionID] = s
	}
	return nil
}

// MarkPaid completes the session as if the guest paid it. Expired sessions
// cannot be paid.
func (p *PaymentProvider) MarkPaid(sessionID string) (policies.ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[sessionID]; !ok {
		return policies.ProviderSession{}, fmt.Errorf("memory: session %s not found", sessionID)
	}
	s := p.current(sessionID)
	if s.Status != policies.SessionOpen {
		return policies.ProviderSession{}, fmt.Errorf("memory: session %s is %s", sessionID, s.Status)
	}
	s.Status = policies.SessionComplete
	s.Paid = true
	s.PaymentID = "pi_test_" + uuid.NewString()
	p.sessions[sessionID] = s
	return s, nil
}

func (p *PaymentProvider) SessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *PaymentProvider) Refunds() []Refund {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Refund(nil), p.refunds...)
}

var _ policies.PaymentProvider = (*PaymentProvider)(nil)
