package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"hiddystays/internal/app/policies"
)

// Notifications stores in-app notifications.
type Notifications struct {
	Pool *pgxpool.Pool
}

func (n *Notifications) Write(ctx context.Context, note policies.InAppNotification) error {
	var bookingID *string
	if note.BookingID != "" {
		bookingID = &note.BookingID
	}
	_, err := n.Pool.Exec(ctx, `
		INSERT INTO notifications (user_id, kind, title, body, booking_id)
		VALUES ($1, $2, $3, $4, $5)`,
		note.UserID, note.Kind, note.Title, note.Body, bookingID)
	if err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}
