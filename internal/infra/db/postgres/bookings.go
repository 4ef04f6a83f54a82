package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/money"
)

var ErrVersionConflict = errors.New("postgres: booking was modified concurrently")

type bookingRepo struct {
	q querier
}

const bookingColumns = `id, property_id, guest_id, guest_email, guest_name, check_in, check_out,
	guests, total_cents, currency, status, payment_status,
	session_id, session_url, session_amount_cents, session_expires_at, session_consumed,
	payment_ref, refunded_cents, returned_payments, cancel_reason, created_at, updated_at, version`

func scanBooking(row pgx.Row) (*booking.Booking, error) {
	var (
		b             booking.Booking
		currency      string
		refunded      int64
		sessionID     *string
		sessionURL    *string
		sessionAmount *int64
		sessionExp    *time.Time
		consumed      bool
	)
	err := row.Scan(
		&b.ID, &b.PropertyID, &b.GuestID, &b.GuestEmail, &b.GuestName, &b.Range.CheckIn, &b.Range.CheckOut,
		&b.Guests, &b.Total.Amount, &currency, &b.Status, &b.Payment,
		&sessionID, &sessionURL, &sessionAmount, &sessionExp, &consumed,
		&b.PaymentRef, &refunded, &b.ReturnedPayments, &b.CancelReason, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Total.Currency = currency
	b.Refunded = money.Money{Amount: refunded, Currency: currency}
	if sessionID != nil {
		s := &booking.PaymentSession{ID: *sessionID, Consumed: consumed}
		if sessionURL != nil {
			s.URL = *sessionURL
		}
		if sessionAmount != nil {
			s.Amount = money.Money{Amount: *sessionAmount, Currency: currency}
		}
		if sessionExp != nil {
			s.ExpiresAt = *sessionExp
		}
		b.Session = s
	}
	return &b, nil
}

func (r bookingRepo) one(ctx context.Context, where string, arg any) (*booking.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r bookingRepo) many(ctx context.Context, query string, args ...any) ([]*booking.Booking, error) {
	rows, err := r.q.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	var out []*booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r bookingRepo) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return r.one(ctx, `id = $1`, id)
}

func (r bookingRepo) BySession(ctx context.Context, sessionID string) (*booking.Booking, error) {
	return r.one(ctx, `session_id = $1`, sessionID)
}

func (r bookingRepo) ListActiveByProperty(ctx context.Context, propertyID properties.PropertyID) ([]*booking.Booking, error) {
	return r.many(ctx, `property_id = $1 AND status IN ('pending', 'confirmed') ORDER BY check_in, id`, propertyID)
}

func (r bookingRepo) ListByGuest(ctx context.Context, guestID string) ([]*booking.Booking, error) {
	return r.many(ctx, `guest_id = $1 ORDER BY created_at DESC`, guestID)
}

func (r bookingRepo) ListDueForCompletion(ctx context.Context, now time.Time) ([]*booking.Booking, error) {
	return r.many(ctx, `status = 'confirmed' AND check_out <= $1::date ORDER BY check_out, id`, now.UTC())
}

// Save inserts new bookings and updates existing ones under an optimistic
// version check. Version is bumped on b after a successful write.
func (r bookingRepo) Save(ctx context.Context, b *booking.Booking) error {
	var (
		sessionID, sessionURL *string
		sessionAmount         *int64
		sessionExp            *time.Time
		consumed              bool
	)
	if s := b.Session; s != nil {
		sessionID, sessionURL, sessionAmount, sessionExp = &s.ID, &s.URL, &s.Amount.Amount, &s.ExpiresAt
		consumed = s.Consumed
	}

	returned := b.ReturnedPayments
	if returned == nil {
		returned = []string{}
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if b.Version == 0 {
		tag, err = r.q.Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, 1)`,
			b.ID, b.PropertyID, b.GuestID, b.GuestEmail, b.GuestName, b.Range.CheckIn, b.Range.CheckOut,
			b.Guests, b.Total.Amount, b.Total.Currency, b.Status, b.Payment,
			sessionID, sessionURL, sessionAmount, sessionExp, consumed,
			b.PaymentRef, b.Refunded.Amount, returned, b.CancelReason, b.CreatedAt, b.UpdatedAt)
	} else {
		tag, err = r.q.Exec(ctx, `UPDATE bookings SET
				total_cents = $2, currency = $3, status = $4, payment_status = $5,
				session_id = $6, session_url = $7, session_amount_cents = $8, session_expires_at = $9, session_consumed = $10,
				payment_ref = $11, refunded_cents = $12, returned_payments = $13, cancel_reason = $14, updated_at = $15,
				version = version + 1
			WHERE id = $1 AND version = $16`,
			b.ID, b.Total.Amount, b.Total.Currency, b.Status, b.Payment,
			sessionID, sessionURL, sessionAmount, sessionExp, consumed,
			b.PaymentRef, b.Refunded.Amount, returned, b.CancelReason, b.UpdatedAt, b.Version)
	}
	if err != nil {
		if isExclusionViolation(err) {
			return fmt.Errorf("%w: %v", booking.ErrPropertyUnavailable, err)
		}
		return fmt.Errorf("save booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	b.Version++
	return nil
}
