package expense

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"agency_lifecycle/internal/domain/calendar"
)

// Recurrence is the schedule of a recurring expense template.
type Recurrence string

const (
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

var ErrUnknownRecurrence = errors.New("unknown recurrence")

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRecurrence, s)
	}
	return r, nil
}

// Advance returns the occurrence after the given one. Months and years are
// calendar steps clamped to the end of the target month.
func Advance(occurrence time.Time, r Recurrence) (time.Time, error) {
	switch r {
	case RecurrenceWeekly:
		return calendar.AddWeeks(occurrence, 1), nil
	case RecurrenceMonthly:
		return calendar.AddMonths(occurrence, 1), nil
	case RecurrenceYearly:
		return calendar.AddYears(occurrence, 1), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRecurrence, r)
	}
}
