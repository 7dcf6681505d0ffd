package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths_ClampsToEndOfMonth(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"jan 31 leap year", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"jan 31 common year", date(2023, time.January, 31), 1, date(2023, time.February, 28)},
		{"mar 31 to apr", date(2024, time.March, 31), 1, date(2024, time.April, 30)},
		{"mid month", date(2024, time.May, 15), 1, date(2024, time.June, 15)},
		{"december wraps year", date(2024, time.December, 31), 1, date(2025, time.January, 31)},
		{"negative crosses year", date(2024, time.January, 31), -2, date(2023, time.November, 30)},
		{"twelve months", date(2024, time.August, 31), 12, date(2025, time.August, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.in, tt.n))
		})
	}
}

func TestAddYears_LeapDay(t *testing.T) {
	assert.Equal(t, date(2025, time.February, 28), AddYears(date(2024, time.February, 29), 1))
	assert.Equal(t, date(2028, time.February, 29), AddYears(date(2024, time.February, 29), 4))
}

func TestStartOfDay_UsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	late := time.Date(2024, time.March, 5, 23, 30, 0, 0, loc)
	assert.Equal(t, date(2024, time.March, 5), StartOfDay(late))
}

func TestToday_FixedClock(t *testing.T) {
	c := FixedClock{At: time.Date(2024, time.June, 1, 17, 45, 0, 0, time.UTC)}
	assert.Equal(t, date(2024, time.June, 1), Today(c))
}

func TestDaysBeforeAndBetween(t *testing.T) {
	end := date(2024, time.March, 1)
	assert.Equal(t, date(2024, time.February, 23), DaysBefore(end, 7))
	assert.Equal(t, 7, DaysBetween(DaysBefore(end, 7), end))
	assert.Equal(t, -3, DaysBetween(end, DaysBefore(end, 3)))
	assert.Equal(t, date(2024, time.March, 15), AddWeeks(end, 2))
}
