package money

import (
	"errors"
	"testing"
)

func TestPercentRoundsHalfUp(t *testing.T) {
	cases := []struct {
		amount  int64
		percent int
		want    int64
	}{
		{30000, 100, 30000},
		{30000, 50, 15000},
		{30001, 50, 15001},
		{30001, 0, 0},
		{999, 50, 500},
		{1, 50, 1},
	}
	for _, tc := range cases {
		got := Must(tc.amount, "USD").Percent(tc.percent)
		if got.Amount != tc.want {
			t.Errorf("%d%% of %d = %d, want %d", tc.percent, tc.amount, got.Amount, tc.want)
		}
	}
}

func TestSumRejectsMixedCurrencies(t *testing.T) {
	_, err := Sum("USD", Must(100, "USD"), Must(100, "EUR"))
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	total, err := Sum("usd")
	if err != nil || total.Amount != 0 || total.Currency != "USD" {
		t.Fatalf("empty sum = %+v, %v", total, err)
	}
}

func TestFromMajor(t *testing.T) {
	m, err := FromMajor(85.5, "usd")
	if err != nil {
		t.Fatal(err)
	}
	if m.Amount != 8550 || m.Currency != "USD" {
		t.Fatalf("got %+v", m)
	}
	if m.Major() != 85.5 {
		t.Fatalf("major = %v", m.Major())
	}
}
