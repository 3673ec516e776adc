// Package deadline decides how long a recipient has to act on a notification
// and, for duration-anchored obligations, on which date that period ends.
package deadline

import (
	"sync/atomic"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/calendar"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

// Rule identifiers for determinations that do not come from the table.
const (
	RuleExplicitInText       = "EXPLICIT_IN_TEXT"
	RuleAppearanceHearing    = "APPEARANCE_HEARING"
	RuleAppearanceExpertExam = "APPEARANCE_EXPERT_EXAM"
	RuleAppearanceTrial      = "APPEARANCE_TRIAL"
	RuleDefaultFallback      = "DEFAULT_FALLBACK"
)

var appearanceRules = map[notice.AppearanceType]string{
	notice.AppearanceHearing:    RuleAppearanceHearing,
	notice.AppearanceExpertExam: RuleAppearanceExpertExam,
	notice.AppearanceTrial:      RuleAppearanceTrial,
}

// Anchor says what the obligation is measured against.
type Anchor string

const (
	AnchorDuration   Anchor = "DURATION"
	AnchorAppearance Anchor = "APPEARANCE"
)

// Determination is the engine's answer for one record.
type Determination struct {
	Days   int
	RuleID string
	// DueDate is nil for appearance-anchored obligations.
	DueDate      *time.Time
	Anchor       Anchor
	Jurisdiction string
}

// Engine applies the deadline rules in priority order: an explicit deadline in
// the text, then a dated appearance, then the jurisdiction x category table,
// then the default length.
type Engine struct {
	calendars *calendar.Registry
	table     atomic.Pointer[RuleTable]
}

// NewEngine returns an Engine. A nil registry behaves as weekends-only.
func NewEngine(calendars *calendar.Registry, table *RuleTable) (*Engine, error) {
	if table == nil {
		return nil, pkgerrors.New(pkgerrors.ErrCodeRuleTableInvalid, "rule table is required")
	}
	if calendars == nil {
		calendars = calendar.NewRegistry(nil, nil)
	}
	e := &Engine{calendars: calendars}
	e.table.Store(table)
	return e, nil
}

// SwapTable replaces the rule table used by subsequent determinations.
func (e *Engine) SwapTable(table *RuleTable) {
	if table != nil {
		e.table.Store(table)
	}
}

// Table returns the table in use.
func (e *Engine) Table() *RuleTable {
	return e.table.Load()
}

// Calendars returns the registry the engine consults.
func (e *Engine) Calendars() *calendar.Registry {
	return e.calendars
}

// Determine decides the deadline for an extraction result published on
// publication in the given jurisdiction.
func (e *Engine) Determine(r notice.ExtractionResult, jurisdiction string, publication time.Time) (Determination, error) {
	if publication.IsZero() {
		return Determination{}, pkgerrors.New(pkgerrors.ErrCodeRuleInputInvalid, "publication date is required")
	}
	j := e.calendars.Normalize(jurisdiction)

	if r.ExplicitDeadlineDays != nil {
		days := *r.ExplicitDeadlineDays
		if days < 0 {
			return Determination{}, pkgerrors.Newf(pkgerrors.ErrCodeRuleInputInvalid,
				"explicit deadline must be >= 0, got %d", days)
		}
		return e.duration(j, publication, days, RuleExplicitInText)
	}

	if r.HasAppearance() {
		return Determination{
			Days:         0,
			RuleID:       appearanceRules[r.AppearanceType],
			Anchor:       AnchorAppearance,
			Jurisdiction: j,
		}, nil
	}

	table := e.table.Load()
	if row, ok := table.Lookup(j, string(r.Category)); ok {
		return e.duration(j, publication, row.Days, row.RuleID)
	}
	return e.duration(j, publication, table.DefaultDays(), RuleDefaultFallback)
}

func (e *Engine) duration(j string, publication time.Time, days int, ruleID string) (Determination, error) {
	due, err := e.calendars.Advance(j, publication, days)
	if err != nil {
		return Determination{}, pkgerrors.Wrap(err, pkgerrors.CodeUnknown, "compute due date").
			WithDetail("rule_id=" + ruleID)
	}
	return Determination{
		Days:         days,
		RuleID:       ruleID,
		DueDate:      &due,
		Anchor:       AnchorDuration,
		Jurisdiction: j,
	}, nil
}
