// internal/domain/calendar/calendar.go
package calendar

import "time"

// Clock is the single source of "now" for the lifecycle engine.
// Tests replace it with FixedClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the configured location.
type SystemClock struct {
	Location *time.Location // nil means UTC
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// Today returns the clock's current calendar day as a date-only value.
func Today(c Clock) time.Time {
	return StartOfDay(c.Now())
}

// StartOfDay drops the time of day. The result is expressed at UTC midnight of the
// calendar day t falls on in its own location, so dates compare cleanly regardless
// of where they were produced.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func AddDays(t time.Time, n int) time.Time  { return t.AddDate(0, 0, n) }
func AddWeeks(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) }

// DaysBefore returns the date n days before t.
func DaysBefore(t time.Time, n int) time.Time { return t.AddDate(0, 0, -n) }

// AddMonths moves t by n calendar months. When the target month is shorter than
// t's day, the result is clamped to the last day of that month.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	ty := y + floorDiv(total, 12)
	tm := time.Month(floorMod(total, 12) + 1)
	if last := DaysIn(ty, tm); d > last {
		d = last
	}
	return time.Date(ty, tm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// AddYears moves t by n calendar years; Feb 29 lands on Feb 28 in non-leap years.
func AddYears(t time.Time, n int) time.Time {
	return AddMonths(t, 12*n)
}

// DaysIn reports the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween counts whole calendar days from a to b (negative when b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
