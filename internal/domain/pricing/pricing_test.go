package pricing

import (
	"testing"
	"time"

	"hiddystays/internal/domain/availability"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
)

func mustRange(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatal(err)
	}
	return dr
}

func mustDay(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := daterange.ParseDay(raw)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestResolveBaseOnly(t *testing.T) {
	q, err := Resolve(money.Must(10000, "USD"), mustRange(t, "2024-08-15", "2024-08-18"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if q.Total.Amount != 30000 {
		t.Fatalf("total = %d, want 30000", q.Total.Amount)
	}
	if len(q.Nights) != 3 {
		t.Fatalf("nights = %d", len(q.Nights))
	}
	if got := daterange.Format(q.Nights[2].Date); got != "2024-08-17" {
		t.Fatalf("last night = %s", got)
	}
}

func TestResolveSumEqualsTotal(t *testing.T) {
	base := money.Must(12345, "USD")
	cases := []Overrides{
		nil,
		{},
		{"2024-08-16": {Price: money.Must(9999, "USD"), Source: SourceDate}},
		{
			"2024-08-15": {Price: money.Must(1, "USD"), Source: SourceDate},
			"2024-08-17": {Price: money.Must(33333, "USD"), Source: SourcePeriod},
			"2024-08-18": {Price: money.Must(50000, "USD"), Source: SourceDate},
		},
	}
	for i, ov := range cases {
		q, err := Resolve(base, mustRange(t, "2024-08-15", "2024-08-20"), ov)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		var sum int64
		for _, n := range q.Nights {
			sum += n.Price.Amount
		}
		if sum != q.Total.Amount {
			t.Fatalf("case %d: sum %d != total %d", i, sum, q.Total.Amount)
		}
	}
}

func TestResolveIgnoresCheckoutDayOverride(t *testing.T) {
	ov := Overrides{"2024-08-18": {Price: money.Must(99900, "USD"), Source: SourceDate}}
	q, err := Resolve(money.Must(10000, "USD"), mustRange(t, "2024-08-15", "2024-08-18"), ov)
	if err != nil {
		t.Fatal(err)
	}
	if q.Total.Amount != 30000 {
		t.Fatalf("checkout day must not be charged, total = %d", q.Total.Amount)
	}
}

func TestResolveRejectsInvertedRange(t *testing.T) {
	dr := daterange.DateRange{CheckIn: mustDay(t, "2024-08-18"), CheckOut: mustDay(t, "2024-08-15")}
	if _, err := Resolve(money.Must(10000, "USD"), dr, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildOverridesPrecedence(t *testing.T) {
	period := money.Must(20000, "USD")
	older := money.Must(15000, "USD")
	custom := money.Must(5000, "USD")
	s1, _ := daterange.NewSpan(mustDay(t, "2024-08-15"), mustDay(t, "2024-08-17"))
	s2, _ := daterange.NewSpan(mustDay(t, "2024-08-16"), mustDay(t, "2024-08-16"))
	blocks := []*availability.BlockedRange{
		{ID: "new", Span: s1, PriceOverride: &period, CreatedAt: mustDay(t, "2024-07-02")},
		{ID: "old", Span: s2, PriceOverride: &older, CreatedAt: mustDay(t, "2024-07-01")},
		{ID: "plain", Span: s1},
	}
	records := []availability.Record{
		{Date: mustDay(t, "2024-08-17"), Available: true, CustomPrice: &custom},
		{Date: mustDay(t, "2024-08-19"), Available: false},
	}
	ov := BuildOverrides(blocks, records)
	if ov["2024-08-16"].Price.Amount != 20000 {
		t.Fatalf("newer period should win, got %+v", ov["2024-08-16"])
	}
	if ov["2024-08-17"].Source != SourceDate || ov["2024-08-17"].Price.Amount != 5000 {
		t.Fatalf("record should win, got %+v", ov["2024-08-17"])
	}
	if _, ok := ov["2024-08-19"]; ok {
		t.Fatal("record without price must not create an override")
	}

	q, err := Resolve(money.Must(10000, "USD"), mustRange(t, "2024-08-14", "2024-08-18"), ov)
	if err != nil {
		t.Fatal(err)
	}
	// 100 + 200 + 200 + 50
	if q.Total.Amount != 55000 {
		t.Fatalf("total = %d", q.Total.Amount)
	}
}

func TestBuildOverridesBreaksCreationTiesByID(t *testing.T) {
	low := money.Must(12000, "USD")
	high := money.Must(18000, "USD")
	span, _ := daterange.NewSpan(mustDay(t, "2024-08-15"), mustDay(t, "2024-08-16"))
	created := mustDay(t, "2024-07-01")
	a := &availability.BlockedRange{ID: "period-a", Span: span, PriceOverride: &low, CreatedAt: created}
	b := &availability.BlockedRange{ID: "period-b", Span: span, PriceOverride: &high, CreatedAt: created}

	for _, order := range [][]*availability.BlockedRange{{a, b}, {b, a}} {
		ov := BuildOverrides(order, nil)
		if got := ov["2024-08-15"].Price.Amount; got != 18000 {
			t.Fatalf("order %s,%s: price = %d, want the greater id", order[0].ID, order[1].ID, got)
		}
	}
}
