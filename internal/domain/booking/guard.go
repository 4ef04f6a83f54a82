package booking

import (
	"context"
	"fmt"

	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
)

// ConflictGuard re-checks a candidate stay against every other active booking
// of the property. It is check-then-act: callers hold the property lock of
// their unit of work, and the Postgres schema carries an exclusion constraint
// as the final word.
type ConflictGuard struct {
	Bookings Repository
}

func (g ConflictGuard) Check(ctx context.Context, propertyID properties.PropertyID, candidate daterange.DateRange, exclude BookingID) error {
	if err := candidate.Validate(); err != nil {
		return err
	}
	active, err := g.Bookings.ListActiveByProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	for _, other := range active {
		if other.ID == exclude || !other.Active() {
			continue
		}
		if daterange.RangesOverlap(candidate.CheckIn, candidate.CheckOut, other.Range.CheckIn, other.Range.CheckOut) {
			return fmt.Errorf("%w: overlaps booking %s (%s)", ErrPropertyUnavailable, other.ID, other.Range)
		}
	}
	return nil
}
