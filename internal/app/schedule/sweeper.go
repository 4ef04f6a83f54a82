package schedule

import (
	"context"
	"log/slog"
	"time"

	"hiddystays/internal/app/commands"
	bookingapp "hiddystays/internal/app/handlers/booking"
)

// Sweeper periodically completes stays whose checkout date has passed.
type Sweeper struct {
	Commands commands.Bus
	Interval time.Duration
	Logger   *slog.Logger
}

func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) {
	res, err := commands.Dispatch[bookingapp.CompleteStaysCommand, *bookingapp.CompleteStaysResult](ctx, s.Commands, bookingapp.CompleteStaysCommand{})
	if s.Logger == nil {
		return
	}
	if err != nil {
		s.Logger.Error("completion sweep failed", "error", err)
		return
	}
	if res != nil && res.Completed > 0 {
		s.Logger.Info("stays completed", "count", res.Completed)
	}
}
