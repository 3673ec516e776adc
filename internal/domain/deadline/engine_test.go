package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/domain/calendar"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func defaultRows() []Row {
	return []Row{
		{Jurisdiction: "TRT3", Category: "LABOR", Days: 8, RuleID: "TRT3_LABOR"},
		{Jurisdiction: "TJMG", Category: "SMALL_CLAIMS", Days: 10, RuleID: "TJMG_SMALL_CLAIMS"},
		{Jurisdiction: "TJMG", Category: "CIVIL", Days: 15, RuleID: "TJMG_CIVIL"},
		{Jurisdiction: "TJMG", Category: "CRIMINAL", Days: 15, RuleID: "TJMG_CRIMINAL"},
		{Jurisdiction: "TRF6", Category: "*", Days: 15, RuleID: "TRF6_ANY"},
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	reg := calendar.NewRegistry(map[string][]time.Time{
		"TJMG": {day(2025, 6, 19), day(2025, 6, 20)},
	}, nil)
	table, err := NewRuleTable(defaultRows(), 5)
	require.NoError(t, err)
	e, err := NewEngine(reg, table)
	require.NoError(t, err)
	return e
}

func TestDetermine_ExplicitDeadline(t *testing.T) {
	e := newEngine(t)

	d, err := e.Determine(notice.ExtractionResult{ExplicitDeadlineDays: intPtr(8)}, "TRT-3", day(2025, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, 8, d.Days)
	assert.Equal(t, RuleExplicitInText, d.RuleID)
	assert.Equal(t, AnchorDuration, d.Anchor)
	assert.Equal(t, "TRT3", d.Jurisdiction)
	require.NotNil(t, d.DueDate)
	assert.Equal(t, day(2025, 6, 12), *d.DueDate)
}

func TestDetermine_ExplicitZero(t *testing.T) {
	e := newEngine(t)

	d, err := e.Determine(notice.ExtractionResult{ExplicitDeadlineDays: intPtr(0)}, "TJMG", day(2025, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, RuleExplicitInText, d.RuleID)
	require.NotNil(t, d.DueDate)
	assert.Equal(t, day(2025, 6, 3), *d.DueDate)
}

func TestDetermine_ExplicitBeatsAppearance(t *testing.T) {
	e := newEngine(t)
	hearing := day(2025, 7, 10)

	d, err := e.Determine(notice.ExtractionResult{
		ExplicitDeadlineDays: intPtr(5),
		AppearanceType:       notice.AppearanceHearing,
		AppearanceDate:       &hearing,
		Category:             notice.CategoryCivil,
	}, "TJMG", day(2025, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, RuleExplicitInText, d.RuleID)
	assert.Equal(t, AnchorDuration, d.Anchor)
	assert.NotNil(t, d.DueDate)
}

func TestDetermine_Appearance(t *testing.T) {
	e := newEngine(t)
	when := day(2025, 7, 10)

	tests := []struct {
		kind notice.AppearanceType
		want string
	}{
		{notice.AppearanceHearing, RuleAppearanceHearing},
		{notice.AppearanceExpertExam, RuleAppearanceExpertExam},
		{notice.AppearanceTrial, RuleAppearanceTrial},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			d, err := e.Determine(notice.ExtractionResult{
				AppearanceType: tt.kind,
				AppearanceDate: &when,
				Category:       notice.CategoryCivil,
			}, "TJMG", day(2025, 6, 2))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.RuleID)
			assert.Equal(t, 0, d.Days)
			assert.Nil(t, d.DueDate)
			assert.Equal(t, AnchorAppearance, d.Anchor)
		})
	}
}

func TestDetermine_AppearanceWithoutDateFallsThrough(t *testing.T) {
	e := newEngine(t)

	d, err := e.Determine(notice.ExtractionResult{
		AppearanceType: notice.AppearanceHearing,
		Category:       notice.CategoryCivil,
	}, "TJMG", day(2025, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, "TJMG_CIVIL", d.RuleID)
	assert.Equal(t, 15, d.Days)
}

func TestDetermine_Table(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name         string
		jurisdiction string
		category     notice.Category
		wantRule     string
		wantDays     int
	}{
		{"labor", "TRT3", notice.CategoryLabor, "TRT3_LABOR", 8},
		{"small claims", "tjmg", notice.CategorySmallClaims, "TJMG_SMALL_CLAIMS", 10},
		{"civil via alias", "TJ-MG", notice.CategoryCivil, "TJMG_CIVIL", 15},
		{"wildcard", "TRF6", notice.CategoryCriminal, "TRF6_ANY", 15},
		{"wildcard empty category", "TRF-6", "", "TRF6_ANY", 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Determine(notice.ExtractionResult{Category: tt.category}, tt.jurisdiction, day(2025, 6, 2))
			require.NoError(t, err)
			assert.Equal(t, tt.wantRule, d.RuleID)
			assert.Equal(t, tt.wantDays, d.Days)
			require.NotNil(t, d.DueDate)
		})
	}
}

func TestDetermine_TableUsesJurisdictionCalendar(t *testing.T) {
	e := newEngine(t)

	// 2025-06-16 +15 business days on TJMG skips the 19th and 20th.
	d, err := e.Determine(notice.ExtractionResult{Category: notice.CategoryCivil}, "TJMG", day(2025, 6, 16))
	require.NoError(t, err)
	require.NotNil(t, d.DueDate)
	assert.Equal(t, day(2025, 7, 9), *d.DueDate)
}

func TestDetermine_DefaultFallback(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name         string
		jurisdiction string
		category     notice.Category
	}{
		{"no row for category", "TRT3", notice.CategoryCivil},
		{"unknown jurisdiction", "STF", notice.CategoryCivil},
		{"empty jurisdiction", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Determine(notice.ExtractionResult{Category: tt.category}, tt.jurisdiction, day(2025, 6, 2))
			require.NoError(t, err)
			assert.Equal(t, RuleDefaultFallback, d.RuleID)
			assert.Equal(t, 5, d.Days)
			require.NotNil(t, d.DueDate)
			assert.Equal(t, day(2025, 6, 9), *d.DueDate)
		})
	}
}

func TestDetermine_InvalidInput(t *testing.T) {
	e := newEngine(t)

	_, err := e.Determine(notice.ExtractionResult{}, "TJMG", time.Time{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeRuleInputInvalid))

	_, err = e.Determine(notice.ExtractionResult{ExplicitDeadlineDays: intPtr(-1)}, "TJMG", day(2025, 6, 2))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeRuleInputInvalid))
}

func TestEngine_SwapTable(t *testing.T) {
	e := newEngine(t)

	table, err := NewRuleTable([]Row{{Jurisdiction: "TRT3", Category: "*", Days: 3, RuleID: "TRT3_SHORT"}}, 2)
	require.NoError(t, err)
	e.SwapTable(table)
	e.SwapTable(nil)

	d, err := e.Determine(notice.ExtractionResult{Category: notice.CategoryLabor}, "TRT3", day(2025, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, "TRT3_SHORT", d.RuleID)

	d, err = e.Determine(notice.ExtractionResult{Category: notice.CategoryCivil}, "TJMG", day(2025, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, RuleDefaultFallback, d.RuleID)
	assert.Equal(t, 2, d.Days)
}

func TestNewEngine_RequiresTable(t *testing.T) {
	_, err := NewEngine(nil, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeRuleTableInvalid))

	table, err := NewRuleTable(nil, 5)
	require.NoError(t, err)
	e, err := NewEngine(nil, table)
	require.NoError(t, err)

	d, err := e.Determine(notice.ExtractionResult{}, "TJMG", day(2025, 6, 6))
	require.NoError(t, err)
	assert.Equal(t, day(2025, 6, 13), *d.DueDate)
}
