package middleware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"hiddystays/internal/app/commands"
	"hiddystays/internal/app/middleware"
	"hiddystays/internal/infra/storage/memory"
)

type chargeCommand struct {
	Actor string
	Ref   string
}

func (c chargeCommand) Key() string            { return "test.charge" }
func (c chargeCommand) ActorID() string        { return c.Actor }
func (c chargeCommand) IdempotencyKey() string { return c.Ref }
func (c chargeCommand) ResultPrototype() any   { return &chargeResult{} }

type chargeResult struct {
	Seq int `json:"seq"`
}

func newChargeBus(calls *int, fail *bool) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, commands.HandlerFunc[chargeCommand, *chargeResult](func(ctx context.Context, cmd chargeCommand) (*chargeResult, error) {
		if *fail {
			return nil, errors.New("declined")
		}
		*calls++
		return &chargeResult{Seq: *calls}, nil
	}))
	return bus
}

func TestIdempotencyReplaysStoredResult(t *testing.T) {
	calls, fail := 0, false
	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	bus := middleware.ChainCommands(newChargeBus(&calls, &fail),
		middleware.Idempotency(memory.NewIdempotencyStore(0), middleware.IdempotencyOptions{TTL: time.Hour, Now: func() time.Time { return now }}),
	)
	ctx := context.Background()

	first, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Actor: "guest-a", Ref: "k1"})
	if err != nil {
		t.Fatal(err)
	}
	replay, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Actor: "guest-a", Ref: "k1"})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 || replay.Seq != first.Seq {
		t.Fatalf("calls=%d first=%d replay=%d", calls, first.Seq, replay.Seq)
	}

	// Keys are scoped per actor.
	if _, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Actor: "guest-b", Ref: "k1"}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("other actor replayed a foreign result, calls=%d", calls)
	}

	now = now.Add(2 * time.Hour)
	if _, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Actor: "guest-a", Ref: "k1"}); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("expired key must run again, calls=%d", calls)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	calls, fail := 0, true
	bus := middleware.ChainCommands(newChargeBus(&calls, &fail),
		middleware.Idempotency(memory.NewIdempotencyStore(0), middleware.IdempotencyOptions{}),
	)
	ctx := context.Background()
	if _, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Actor: "guest-a", Ref: "k1"}); err == nil {
		t.Fatal("expected failure")
	}
	fail = false
	res, err := commands.Dispatch[chargeCommand, *chargeResult](ctx, bus, chargeCommand{Actor: "guest-a", Ref: "k1"})
	if err != nil || res.Seq != 1 {
		t.Fatalf("retry after failure: %+v %v", res, err)
	}
}
