package daterange

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// Layout is the calendar-day wire format.
const Layout = "2006-01-02"

const day = 24 * time.Hour

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrInvalidDate  = errors.New("daterange: date must use YYYY-MM-DD")
)

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(raw string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t.UTC(), nil
}

func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// NightsBetween counts nights, rounding partial days up.
func NightsBetween(checkIn, checkOut time.Time) (int, error) {
	diff := checkOut.Sub(checkIn)
	if checkIn.IsZero() || checkOut.IsZero() || diff <= 0 {
		return 0, ErrInvalidRange
	}
	nights := int(diff / day)
	if diff%day != 0 {
		nights++
	}
	return nights, nil
}

// RangesOverlap tests two half-open intervals. A stay ending on the day another
// begins does not overlap it.
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// EnumerateDates yields every calendar day from start through end inclusive.
// The sequence can be ranged over any number of times.
func EnumerateDates(start, end time.Time) iter.Seq[time.Time] {
	first, last := Day(start), Day(end)
	return func(yield func(time.Time) bool) {
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			if !yield(d) {
				return
			}
		}
	}
}

// DateStrings is EnumerateDates formatted with Layout.
func DateStrings(start, end time.Time) iter.Seq[string] {
	return func(yield func(string) bool) {
		for d := range EnumerateDates(start, end) {
			if !yield(Format(d)) {
				return
			}
		}
	}
}

// DateRange represents a half-open interval [checkIn, checkOut)
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: checkIn.UTC(), CheckOut: checkOut.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a stay from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDay(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDay(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	n, err := NightsBetween(dr.CheckIn, dr.CheckOut)
	if err != nil {
		return 0
	}
	return n
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return RangesOverlap(dr.CheckIn, dr.CheckOut, other.CheckIn, other.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = t.UTC()
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

// Days yields one calendar day per night, starting at check-in; the checkout
// day is excluded.
func (dr DateRange) Days() iter.Seq[time.Time] {
	nights := dr.Nights()
	first := Day(dr.CheckIn)
	return func(yield func(time.Time) bool) {
		for i := 0; i < nights; i++ {
			if !yield(first.AddDate(0, 0, i)) {
				return
			}
		}
	}
}

func (dr DateRange) String() string {
	return Format(dr.CheckIn) + ".." + Format(dr.CheckOut)
}

// Span is an inclusive run of calendar days [Start, End], as hosts enter
// blocked periods.
type Span struct {
	Start time.Time
	End   time.Time
}

func NewSpan(start, end time.Time) (Span, error) {
	s := Span{Start: Day(start), End: Day(end)}
	if start.IsZero() || end.IsZero() || s.End.Before(s.Start) {
		return Span{}, fmt.Errorf("%w: end date before start date", ErrInvalidRange)
	}
	return s, nil
}

func (s Span) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(s.Start) && !d.After(s.End)
}

// HalfOpen converts the span to [Start, End+1d).
func (s Span) HalfOpen() DateRange {
	return DateRange{CheckIn: s.Start, CheckOut: s.End.AddDate(0, 0, 1)}
}

// OverlapsStay reports whether any day of the span is a night of dr.
func (s Span) OverlapsStay(dr DateRange) bool {
	h := s.HalfOpen()
	return h.Overlaps(dr)
}

func (s Span) Days() iter.Seq[time.Time] {
	return EnumerateDates(s.Start, s.End)
}

// Len is the number of calendar days in the span.
func (s Span) Len() int {
	return int(s.End.Sub(s.Start)/day) + 1
}
