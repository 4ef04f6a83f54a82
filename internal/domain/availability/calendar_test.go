package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
)

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := daterange.ParseDay(raw)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func stay(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatal(err)
	}
	return dr
}

func span(t *testing.T, start, end string) daterange.Span {
	t.Helper()
	s, err := daterange.NewSpan(day(t, start), day(t, end))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCalculateMarksBookedAndBlocked(t *testing.T) {
	window := span(t, "2024-08-14", "2024-08-21")
	occ := []Occupancy{{BookingID: "b1", Range: stay(t, "2024-08-15", "2024-08-18")}}
	blocks := []*BlockedRange{{ID: "x", Span: span(t, "2024-08-17", "2024-08-19")}}

	days := Calculate(window, occ, blocks, nil)
	if len(days) != 8 {
		t.Fatalf("len = %d, want 8", len(days))
	}
	want := map[string][3]bool{ // available, booked, blocked
		"2024-08-14": {true, false, false},
		"2024-08-15": {false, true, false},
		"2024-08-16": {false, true, false},
		"2024-08-17": {false, true, true},
		"2024-08-18": {false, false, true},
		"2024-08-19": {false, false, true},
		"2024-08-20": {true, false, false},
		"2024-08-21": {true, false, false},
	}
	for _, d := range days {
		exp := want[daterange.Format(d.Date)]
		got := [3]bool{d.IsAvailable, d.IsBooked, d.IsBlocked}
		if got != exp {
			t.Errorf("%s: got %v want %v", daterange.Format(d.Date), got, exp)
		}
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	window := span(t, "2024-08-01", "2024-08-31")
	occ := []Occupancy{{BookingID: "b1", Range: stay(t, "2024-08-03", "2024-08-05")}}
	blocks := []*BlockedRange{{ID: "x", Span: span(t, "2024-08-20", "2024-08-22")}}
	records := []Record{{Date: day(t, "2024-08-10"), Available: false}}

	first := Calculate(window, occ, blocks, records)
	second := Calculate(window, occ, blocks, records)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("calculator output differs between runs")
	}
}

func TestCalculateHonoursClosedRecordsAndPricePeriods(t *testing.T) {
	window := span(t, "2024-08-10", "2024-08-12")
	price := money.Must(20000, "USD")
	blocks := []*BlockedRange{{ID: "p", Span: span(t, "2024-08-10", "2024-08-12"), PriceOverride: &price}}
	records := []Record{{Date: day(t, "2024-08-11"), Available: false}}

	days := Calculate(window, nil, blocks, records)
	if !days[0].IsAvailable || days[1].IsAvailable || !days[2].IsAvailable {
		t.Fatalf("unexpected availability %+v", days)
	}
	if !days[1].IsBlocked {
		t.Fatal("closed record should surface as blocked")
	}
}

func TestNewBlockRejectsActiveBookingOverlap(t *testing.T) {
	active := []Occupancy{{BookingID: "b1", Range: stay(t, "2024-08-15", "2024-08-18")}}
	_, err := NewBlock(NewBlockParams{ID: "blk", PropertyID: "p1", Span: span(t, "2024-08-17", "2024-08-20"), Active: active, Now: time.Now()})
	if !errors.Is(err, ErrBlockConflictsBooking) {
		t.Fatalf("expected conflict, got %v", err)
	}

	b, err := NewBlock(NewBlockParams{ID: "blk", PropertyID: "p1", Span: span(t, "2024-08-18", "2024-08-20"), Active: active, Now: time.Now()})
	if err != nil {
		t.Fatalf("checkout day should be blockable: %v", err)
	}
	if evs := b.PendingEvents(); len(evs) != 1 || evs[0].EventName() != "availability.blocked" {
		t.Fatalf("unexpected events %v", evs)
	}
}

func TestStayOpen(t *testing.T) {
	blocks := []*BlockedRange{{ID: "x", Span: span(t, "2024-08-20", "2024-08-21")}}
	if StayOpen(stay(t, "2024-08-19", "2024-08-21"), blocks, nil) {
		t.Fatal("stay over blocked night must not be open")
	}
	if !StayOpen(stay(t, "2024-08-17", "2024-08-20"), blocks, nil) {
		t.Fatal("stay checking out on blocked day should be open")
	}
}
