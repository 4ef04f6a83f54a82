package booking

import (
	"math"
	"time"

	"hiddystays/internal/domain/shared/money"
)

// RefundPercent applies the cancellation schedule: more than 7 days before
// check-in refunds everything, 3 to 7 days refunds half, later refunds nothing.
func RefundPercent(checkIn, today time.Time) int {
	days := int(math.Ceil(checkIn.Sub(today).Hours() / 24))
	switch {
	case days > 7:
		return 100
	case days >= 3:
		return 50
	default:
		return 0
	}
}

// RefundFor returns the refund owed if the booking were cancelled at now.
// Unpaid bookings are owed nothing.
func (b *Booking) RefundFor(now time.Time) (int, money.Money) {
	percent := RefundPercent(b.Range.CheckIn, now)
	if b.Payment != PaymentPaid {
		return percent, money.Money{Currency: b.Total.Currency}
	}
	return percent, b.Total.Percent(percent)
}
