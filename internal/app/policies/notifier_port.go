package policies

import "context"

type Email struct {
	To      string
	Subject string
	Text    string
}

// Notifier sends transactional email. Callers log failures and move on.
type Notifier interface {
	Send(ctx context.Context, email Email) error
}

type InAppNotification struct {
	UserID    string
	Kind      string
	Title     string
	Body      string
	BookingID string
}

// InAppWriter stores notifications shown in the user's inbox.
type InAppWriter interface {
	Write(ctx context.Context, n InAppNotification) error
}
