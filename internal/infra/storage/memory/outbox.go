package memory

import (
	"context"
	"errors"
	"sync"

	"hiddystays/internal/app/outbox"
	"hiddystays/internal/app/uow"
)

// Outbox stages records on the active memory unit and releases them to the
// committed queue only when that unit commits. Flush drains the queue into
// the dispatcher.
type Outbox struct {
	mu         sync.Mutex
	committed  []outbox.EventRecord
	dispatcher outbox.Dispatcher
}

func NewOutbox(dispatcher outbox.Dispatcher) *Outbox {
	return &Outbox{dispatcher: dispatcher}
}

func (o *Outbox) Add(ctx context.Context, record outbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if tx, ok := unit.(*Tx); ok && !tx.done {
			tx.stage(record)
			return nil
		}
	}
	o.commit([]outbox.EventRecord{record})
	return nil
}

func (o *Outbox) commit(records []outbox.EventRecord) {
	o.mu.Lock()
	o.committed = append(o.committed, records...)
	o.mu.Unlock()
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.committed
	o.committed = nil
	o.mu.Unlock()
	if o.dispatcher == nil {
		return nil
	}
	var errs []error
	for _, rec := range pending {
		if err := o.dispatcher.Dispatch(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending returns committed records not yet flushed.
func (o *Outbox) Pending() []outbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]outbox.EventRecord(nil), o.committed...)
}
