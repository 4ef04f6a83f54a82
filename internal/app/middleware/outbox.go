package middleware

import (
	"context"
	"log/slog"

	"hiddystays/internal/app/commands"
	"hiddystays/internal/app/outbox"
)

// OutboxFlush delivers committed events after the command succeeded. It must
// sit outside Transaction. Delivery errors are logged; the command result
// stands because its state is already committed.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
