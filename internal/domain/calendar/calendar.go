// Package calendar holds per-jurisdiction holiday calendars and the
// business-day arithmetic used to compute legal deadlines.
package calendar

import (
	"sort"
	"time"
)

// dayKey identifies a civil date independent of clock time and location.
type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{year: y, month: m, day: d}
}

// Day truncates t to midnight UTC of its civil date. All calendar arithmetic
// works on values produced by Day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Calendar is the immutable set of non-business dates of one jurisdiction.
// Weekends are never listed; IsBusinessDay handles them.
type Calendar struct {
	jurisdiction string
	holidays     map[dayKey]struct{}
}

// New builds a Calendar. Duplicate dates collapse.
func New(jurisdiction string, holidays []time.Time) *Calendar {
	c := &Calendar{
		jurisdiction: jurisdiction,
		holidays:     make(map[dayKey]struct{}, len(holidays)),
	}
	for _, h := range holidays {
		c.holidays[keyOf(h)] = struct{}{}
	}
	return c
}

// Empty returns a Calendar with no holidays, so only weekends are skipped.
func Empty(jurisdiction string) *Calendar {
	return New(jurisdiction, nil)
}

// Jurisdiction returns the normalised jurisdiction code.
func (c *Calendar) Jurisdiction() string {
	if c == nil {
		return ""
	}
	return c.jurisdiction
}

// Len returns the number of distinct holidays.
func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.holidays)
}

// IsHoliday reports whether t's civil date is listed.
func (c *Calendar) IsHoliday(t time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.holidays[keyOf(t)]
	return ok
}

// IsBusinessDay reports whether t is a weekday and not a holiday.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(t)
}

// Holidays returns the listed dates in ascending order.
func (c *Calendar) Holidays() []time.Time {
	out := make([]time.Time, 0, len(c.holidays))
	for k := range c.holidays {
		out = append(out, time.Date(k.year, k.month, k.day, 0, 0, 0, 0, time.UTC))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
