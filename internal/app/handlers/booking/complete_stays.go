package booking

import (
	"context"
	"log/slog"
	"time"

	"hiddystays/internal/app/commands"
	handlersupport "hiddystays/internal/app/handlers/support"
	"hiddystays/internal/app/outbox"
)

const completeStaysKey = "booking.complete_stays"

// CompleteStaysCommand closes confirmed stays whose checkout date has passed.
type CompleteStaysCommand struct{}

func (CompleteStaysCommand) Key() string { return completeStaysKey }

type CompleteStaysResult struct {
	Completed int `json:"completed"`
}

type CompleteStaysHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Now     func() time.Time
}

func (h *CompleteStaysHandler) Handle(ctx context.Context, _ CompleteStaysCommand) (*CompleteStaysResult, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := handlersupport.Clock(h.Now)
	due, err := unit.Bookings().ListDueForCompletion(ctx, now)
	if err != nil {
		return nil, err
	}
	done := 0
	for _, b := range due {
		if err := b.Complete(now); err != nil {
			if h.Logger != nil {
				h.Logger.Warn("booking not completable", "booking_id", b.ID, "status", b.Status, "error", err)
			}
			continue
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return nil, err
		}
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b.Drain()); err != nil {
			return nil, err
		}
		done++
	}
	return &CompleteStaysResult{Completed: done}, nil
}

var _ commands.Handler[CompleteStaysCommand, *CompleteStaysResult] = (*CompleteStaysHandler)(nil)
