package memory

import (
	"context"
	"sync"

	"hiddystays/internal/app/policies"
)

type InAppStore struct {
	mu    sync.Mutex
	items []policies.InAppNotification
}

func (s *InAppStore) Write(ctx context.Context, n policies.InAppNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return nil
}

func (s *InAppStore) ForUser(userID string) []policies.InAppNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []policies.InAppNotification
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// Mailbox captures outgoing email.
type Mailbox struct {
	mu   sync.Mutex
	sent []policies.Email
}

func (m *Mailbox) Send(ctx context.Context, email policies.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

func (m *Mailbox) Sent() []policies.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]policies.Email(nil), m.sent...)
}
