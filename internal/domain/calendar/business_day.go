package calendar

import (
	"time"

	"github.com/turtacn/NoticeFlow/pkg/errors"
)

// MaxScanDays bounds the day-by-day search in Advance. Ten years of
// consecutive holidays means the calendar data is broken.
const MaxScanDays = 3660

// Advance returns the date reached after counting businessDays business days
// starting the day after start. A day counts when it is a weekday and not a
// holiday in cal; a nil cal counts weekdays only.
//
// businessDays == 0 yields the day after start without further checks. The
// result is midnight UTC of the civil date and never depends on the clock.
func Advance(start time.Time, businessDays int, cal *Calendar) (time.Time, error) {
	if start.IsZero() {
		return time.Time{}, errors.New(errors.ErrCodeCalendarInvalidDate, "start date is required")
	}
	if businessDays < 0 {
		return time.Time{}, errors.Newf(errors.ErrCodeCalendarNegativeDays,
			"business days must be >= 0, got %d", businessDays)
	}

	day := Day(start).AddDate(0, 0, 1)
	if businessDays == 0 {
		return day, nil
	}

	counted := 0
	for scanned := 1; scanned <= MaxScanDays; scanned++ {
		if cal.IsBusinessDay(day) {
			counted++
			if counted == businessDays {
				return day, nil
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}, errors.Newf(errors.ErrCodeCalendarScanExhausted,
		"no result within %d days of %s", MaxScanDays, Day(start).Format("2006-01-02")).
		WithDetail("jurisdiction=" + cal.Jurisdiction())
}

// CountBusinessDays counts business days in the half-open range (from, to].
func CountBusinessDays(from, to time.Time, cal *Calendar) int {
	n := 0
	for d := Day(from).AddDate(0, 0, 1); !d.After(Day(to)); d = d.AddDate(0, 0, 1) {
		if cal.IsBusinessDay(d) {
			n++
		}
	}
	return n
}
