package calendar

import (
	"sort"
	"strings"
	"time"
)

// defaultAliases maps spellings seen in court feeds to canonical codes.
var defaultAliases = map[string]string{
	"TJ-MG": "TJMG",
	"TRT-3": "TRT3",
	"TRT03": "TRT3",
	"TRT 3": "TRT3",
	"TRF-6": "TRF6",
	"TRF06": "TRF6",
	"TRF 6": "TRF6",
}

// Registry resolves jurisdiction codes to calendars. It is built once at
// startup and is read-only afterwards, so it needs no locking.
type Registry struct {
	calendars map[string]*Calendar
	aliases   map[string]string
}

// NewRegistry builds a Registry from holiday lists keyed by jurisdiction.
// Keys and alias entries go through the same normalisation as lookups.
// extraAliases override the built-in ones.
func NewRegistry(holidays map[string][]time.Time, extraAliases map[string]string) *Registry {
	r := &Registry{
		calendars: make(map[string]*Calendar, len(holidays)),
		aliases:   make(map[string]string, len(defaultAliases)+len(extraAliases)),
	}
	for alias, target := range defaultAliases {
		r.aliases[clean(alias)] = clean(target)
	}
	for alias, target := range extraAliases {
		r.aliases[clean(alias)] = clean(target)
	}
	for code, dates := range holidays {
		j := r.Normalize(code)
		if existing, ok := r.calendars[j]; ok {
			dates = append(existing.Holidays(), dates...)
		}
		r.calendars[j] = New(j, dates)
	}
	return r
}

func clean(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Normalize trims, upper-cases and resolves aliases.
func (r *Registry) Normalize(code string) string {
	c := clean(code)
	if target, ok := r.aliases[c]; ok {
		return target
	}
	return c
}

// Calendar returns the calendar for code. Unknown jurisdictions get an empty
// calendar, so only weekends are skipped for them.
func (r *Registry) Calendar(code string) *Calendar {
	j := r.Normalize(code)
	if c, ok := r.calendars[j]; ok {
		return c
	}
	return Empty(j)
}

// Known reports whether code resolves to a loaded calendar.
func (r *Registry) Known(code string) bool {
	_, ok := r.calendars[r.Normalize(code)]
	return ok
}

// Jurisdictions lists the loaded jurisdiction codes in order.
func (r *Registry) Jurisdictions() []string {
	out := make([]string, 0, len(r.calendars))
	for j := range r.calendars {
		out = append(out, j)
	}
	sort.Strings(out)
	return out
}

// Advance is Advance using the calendar of jurisdiction.
func (r *Registry) Advance(jurisdiction string, start time.Time, businessDays int) (time.Time, error) {
	return Advance(start, businessDays, r.Calendar(jurisdiction))
}
