package outbox

import (
	"context"
	"log/slog"

	appoutbox "hiddystays/internal/app/outbox"
)

// Inbox dedupes consumed events by id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// Relay hands published envelopes to an in-process dispatcher exactly once
// per event id.
type Relay struct {
	Inbox      Inbox
	Dispatcher appoutbox.Dispatcher
	Logger     *slog.Logger
}

func (r *Relay) Deliver(ctx context.Context, payload []byte) error {
	rec, err := Decode(payload)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("dropping malformed event", "error", err)
		}
		return nil
	}
	if r.Inbox != nil {
		seen, err := r.Inbox.Seen(ctx, rec.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	return r.Dispatcher.Dispatch(ctx, rec)
}

// LocalProducer publishes straight into a Relay when no broker is
// configured.
type LocalProducer struct {
	Relay *Relay
}

func (p LocalProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	return p.Relay.Deliver(ctx, payload)
}
