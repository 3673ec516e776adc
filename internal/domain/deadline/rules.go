package deadline

import (
	"fmt"
	"strings"

	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

// AnyCategory matches every case category in a table row.
const AnyCategory = "*"

// Row is one jurisdiction x category entry of the deadline table.
type Row struct {
	Jurisdiction string
	Category     string
	Days         int
	RuleID       string
}

// RuleTable is an immutable, ordered deadline table plus the fallback length.
// Rows are matched in order; the first hit wins.
type RuleTable struct {
	rows        []Row
	defaultDays int
}

// NewRuleTable validates rows and returns a table. Jurisdiction and category
// are stored upper-cased; jurisdictions are expected already normalised by the
// caller (see Engine, which normalises through the calendar registry).
func NewRuleTable(rows []Row, defaultDays int) (*RuleTable, error) {
	if defaultDays < 0 {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeRuleTableInvalid, "default days must be >= 0, got %d", defaultDays)
	}
	out := make([]Row, 0, len(rows))
	for i, r := range rows {
		r.Jurisdiction = strings.ToUpper(strings.TrimSpace(r.Jurisdiction))
		r.Category = strings.ToUpper(strings.TrimSpace(r.Category))
		r.RuleID = strings.TrimSpace(r.RuleID)
		switch {
		case r.Jurisdiction == "":
			return nil, pkgerrors.New(pkgerrors.ErrCodeRuleTableInvalid, "rule row without jurisdiction").
				WithDetail(fmt.Sprintf("row=%d", i))
		case r.Category == "":
			return nil, pkgerrors.New(pkgerrors.ErrCodeRuleTableInvalid, "rule row without category").
				WithDetail(fmt.Sprintf("row=%d", i))
		case r.RuleID == "":
			return nil, pkgerrors.New(pkgerrors.ErrCodeRuleTableInvalid, "rule row without rule id").
				WithDetail(fmt.Sprintf("row=%d", i))
		case r.Days < 0:
			return nil, pkgerrors.New(pkgerrors.ErrCodeRuleTableInvalid, "rule row with negative days").
				WithDetail(fmt.Sprintf("row=%d rule_id=%s", i, r.RuleID))
		}
		out = append(out, r)
	}
	return &RuleTable{rows: out, defaultDays: defaultDays}, nil
}

// Lookup returns the first row matching jurisdiction and category.
func (t *RuleTable) Lookup(jurisdiction, category string) (Row, bool) {
	if t == nil {
		return Row{}, false
	}
	category = strings.ToUpper(category)
	for _, r := range t.rows {
		if r.Jurisdiction != jurisdiction {
			continue
		}
		if r.Category == AnyCategory || r.Category == category {
			return r, true
		}
	}
	return Row{}, false
}

// DefaultDays is the fallback deadline length.
func (t *RuleTable) DefaultDays() int {
	if t == nil {
		return 0
	}
	return t.defaultDays
}

// Rows returns a copy of the table rows.
func (t *RuleTable) Rows() []Row {
	if t == nil {
		return nil
	}
	return append([]Row(nil), t.rows...)
}
