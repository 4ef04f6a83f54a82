package validation

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type sample struct {
	PropertyID string `validate:"required"`
	StartDate  string `validate:"required,datetime=2006-01-02"`
	Guests     int    `validate:"gte=1"`
}

func TestValidateReportsEveryField(t *testing.T) {
	err := New().Validate(context.Background(), sample{StartDate: "15/08/2024"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	for _, want := range []string{"PropertyID: is required", "StartDate: must be a date formatted 2006-01-02", "Guests: must be 1 or more"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %q", want, err)
		}
	}
}

func TestValidatePasses(t *testing.T) {
	if err := New().Validate(context.Background(), sample{PropertyID: "p", StartDate: "2024-08-15", Guests: 2}); err != nil {
		t.Fatal(err)
	}
}
