// Package conversation models what an attorney asks over the chat channel.
package conversation

import (
	"context"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
)

// IntentKind names the query an inbound message maps to.
type IntentKind string

const (
	IntentByDate            IntentKind = "by_date"
	IntentUpcomingDeadlines IntentKind = "upcoming_deadlines"
	IntentNextAppearance    IntentKind = "next_appearance"
	IntentRecordDetail      IntentKind = "record_detail"
	IntentUnknown           IntentKind = "unknown"
)

// RelativeDate is a day named relative to today.
type RelativeDate string

const (
	RelativeNone      RelativeDate = ""
	RelativeToday     RelativeDate = "today"
	RelativeYesterday RelativeDate = "yesterday"
	RelativeTomorrow  RelativeDate = "tomorrow"
)

// DetailKind selects which part of a record a detail query wants.
type DetailKind string

const (
	DetailAll      DetailKind = "all"
	DetailDeadline DetailKind = "deadline"
	DetailSummary  DetailKind = "summary"
	DetailActions  DetailKind = "actions"
)

// Entities are the slots an intent may carry.
type Entities struct {
	Date           *time.Time
	RelativeDate   RelativeDate
	AppearanceType notice.AppearanceType
	RecordID       string
	DetailKind     DetailKind
	// Next asks for the earliest upcoming appearance instead of a given day.
	Next bool
}

// Intent is a classified inbound message.
type Intent struct {
	Kind       IntentKind
	Entities   Entities
	Confidence float64
}

// Classifier maps message text to an Intent.
type Classifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

// ResolveDate returns the civil day the intent refers to: the explicit date,
// else the relative day, else today. today must already be a civil date.
func (e Entities) ResolveDate(today time.Time) time.Time {
	if e.Date != nil {
		d := *e.Date
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, today.Location())
	}
	switch e.RelativeDate {
	case RelativeYesterday:
		return today.AddDate(0, 0, -1)
	case RelativeTomorrow:
		return today.AddDate(0, 0, 1)
	}
	return today
}
