package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendar_IsBusinessDay(t *testing.T) {
	cal := New("TJMG", []time.Time{d(2025, 6, 19)})

	assert.True(t, cal.IsBusinessDay(d(2025, 6, 18)))
	assert.False(t, cal.IsBusinessDay(d(2025, 6, 19)))
	assert.False(t, cal.IsBusinessDay(d(2025, 6, 21)))
	assert.False(t, cal.IsBusinessDay(d(2025, 6, 22)))
}

func TestCalendar_DuplicatesCollapse(t *testing.T) {
	cal := New("TJMG", []time.Time{d(2025, 6, 19), d(2025, 6, 19), time.Date(2025, 6, 19, 15, 0, 0, 0, time.UTC)})
	assert.Equal(t, 1, cal.Len())
	assert.Equal(t, []time.Time{d(2025, 6, 19)}, cal.Holidays())
}

func TestCalendar_NilIsWeekendsOnly(t *testing.T) {
	var cal *Calendar
	assert.True(t, cal.IsBusinessDay(d(2025, 6, 19)))
	assert.Equal(t, 0, cal.Len())
	assert.Empty(t, cal.Jurisdiction())
}

func TestDay_Truncates(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	assert.Equal(t, d(2025, 6, 2), Day(time.Date(2025, 6, 2, 22, 30, 0, 0, loc)))
}
