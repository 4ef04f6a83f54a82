package daterange

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func mustDay(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := ParseDay(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return d
}

func TestNightsBetween(t *testing.T) {
	cases := []struct {
		name     string
		in, out  string
		want     int
		wantErr  bool
		outShift time.Duration
	}{
		{name: "three nights", in: "2024-08-15", out: "2024-08-18", want: 3},
		{name: "one night", in: "2024-08-15", out: "2024-08-16", want: 1},
		{name: "same day", in: "2024-08-15", out: "2024-08-15", wantErr: true},
		{name: "inverted", in: "2024-08-18", out: "2024-08-15", wantErr: true},
		{name: "partial day rounds up", in: "2024-08-15", out: "2024-08-16", outShift: 2 * time.Hour, want: 2},
		{name: "across month", in: "2024-01-30", out: "2024-02-02", want: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NightsBetween(mustDay(t, tc.in), mustDay(t, tc.out).Add(tc.outShift))
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRange) {
					t.Fatalf("expected ErrInvalidRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("nights = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRangesOverlapHalfOpen(t *testing.T) {
	a1, a2 := mustDay(t, "2024-08-15"), mustDay(t, "2024-08-18")
	cases := []struct {
		name   string
		b1, b2 string
		want   bool
	}{
		{"overlap on last night", "2024-08-17", "2024-08-20", true},
		{"same-day turnover", "2024-08-18", "2024-08-20", false},
		{"ends on check-in", "2024-08-10", "2024-08-15", false},
		{"contained", "2024-08-16", "2024-08-17", true},
		{"containing", "2024-08-01", "2024-08-30", true},
		{"disjoint", "2024-09-01", "2024-09-03", false},
	}
	for _, tc := range cases {
		b1, b2 := mustDay(t, tc.b1), mustDay(t, tc.b2)
		if got := RangesOverlap(a1, a2, b1, b2); got != tc.want {
			t.Errorf("%s: overlap = %v, want %v", tc.name, got, tc.want)
		}
		if got := RangesOverlap(b1, b2, a1, a2); got != tc.want {
			t.Errorf("%s (swapped): overlap = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEnumerateDatesIsRestartable(t *testing.T) {
	seq := DateStrings(mustDay(t, "2024-02-27"), mustDay(t, "2024-03-01"))
	want := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, want) {
		t.Fatalf("first pass = %v, want %v", first, want)
	}
	if !slices.Equal(second, want) {
		t.Fatalf("second pass = %v, want %v", second, want)
	}
}

func TestEnumerateDatesEmptyWhenInverted(t *testing.T) {
	got := slices.Collect(EnumerateDates(mustDay(t, "2024-03-02"), mustDay(t, "2024-03-01")))
	if len(got) != 0 {
		t.Fatalf("expected empty sequence, got %v", got)
	}
}

func TestEnumerateDatesStopsEarly(t *testing.T) {
	count := 0
	for range EnumerateDates(mustDay(t, "2024-01-01"), mustDay(t, "2024-12-31")) {
		count++
		if count == 5 {
			break
		}
	}
	if count != 5 {
		t.Fatalf("count = %d", count)
	}
}

func TestDateRangeDaysExcludesCheckout(t *testing.T) {
	dr, err := Parse("2024-08-15", "2024-08-18")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for d := range dr.Days() {
		got = append(got, Format(d))
	}
	want := []string{"2024-08-15", "2024-08-16", "2024-08-17"}
	if !slices.Equal(got, want) {
		t.Fatalf("days = %v, want %v", got, want)
	}
	if dr.ContainsDate(mustDay(t, "2024-08-18")) {
		t.Fatal("checkout day must not be occupied")
	}
}

func TestSpanIsInclusive(t *testing.T) {
	span, err := NewSpan(mustDay(t, "2024-08-10"), mustDay(t, "2024-08-12"))
	if err != nil {
		t.Fatal(err)
	}
	if !span.Contains(mustDay(t, "2024-08-12")) {
		t.Fatal("end day must be contained")
	}
	if span.Len() != 3 {
		t.Fatalf("len = %d", span.Len())
	}
	stay, _ := Parse("2024-08-12", "2024-08-14")
	if !span.OverlapsStay(stay) {
		t.Fatal("stay starting on last blocked day must overlap")
	}
	next, _ := Parse("2024-08-13", "2024-08-14")
	if span.OverlapsStay(next) {
		t.Fatal("stay starting after span must not overlap")
	}
	before, _ := Parse("2024-08-08", "2024-08-10")
	if span.OverlapsStay(before) {
		t.Fatal("stay checking out on first blocked day must not overlap")
	}
}

func TestNewSpanRejectsInverted(t *testing.T) {
	if _, err := NewSpan(mustDay(t, "2024-08-12"), mustDay(t, "2024-08-10")); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestParseDayRejectsGarbage(t *testing.T) {
	if _, err := ParseDay("15/08/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
