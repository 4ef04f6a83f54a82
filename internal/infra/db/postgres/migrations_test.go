package postgres

import (
	"regexp"
	"strings"
	"testing"
)

func readSchema(t *testing.T) string {
	t.Helper()
	raw, err := migrations.ReadFile("migrations/00001_booking_core.sql")
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestSchemaAllowsFreeListings(t *testing.T) {
	schema := readSchema(t)
	if !strings.Contains(schema, "CHECK (nightly_rate_cents >= 0)") {
		t.Fatal("properties must accept a zero nightly rate")
	}
	if regexp.MustCompile(`nightly_rate_cents\s*>\s*0`).MatchString(schema) {
		t.Fatal("strictly positive rate check would reject free listings")
	}
}

func TestSchemaPricePeriodTieBreakMatchesDomain(t *testing.T) {
	schema := readSchema(t)
	if !strings.Contains(schema, `ORDER BY b.created_at DESC, b.id COLLATE "C" DESC LIMIT 1`) {
		t.Fatal("calculate_booking_amount must break created_at ties by id like pricing.BuildOverrides")
	}
}

func TestSchemaStoresReturnedPayments(t *testing.T) {
	schema := readSchema(t)
	if !strings.Contains(schema, "returned_payments") || !strings.Contains(bookingColumns, "returned_payments") {
		t.Fatal("returned payments must be persisted with the booking")
	}
}
