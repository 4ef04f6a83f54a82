package memory

import (
	"context"
	"testing"
	"time"

	"hiddystays/internal/app/middleware"
)

func TestIdempotencyStoreSweepsExpiredRecords(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore(time.Hour)

	if err := s.Save(ctx, middleware.IdempotencyRecord{Key: "old", OccurredAt: start}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, middleware.IdempotencyRecord{Key: "recent", OccurredAt: start.Add(90 * time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, middleware.IdempotencyRecord{Key: "new", OccurredAt: start.Add(2 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "old"); ok {
		t.Fatal("expired record must be swept")
	}
	if _, ok, _ := s.Get(ctx, "recent"); !ok {
		t.Fatal("record inside retention must survive")
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d", s.Len())
	}
}
