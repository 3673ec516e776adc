package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/NoticeFlow/internal/domain/deadline"
)

const dateLayout = "2006-01-02"

// newDeadlineCmd groups the offline calendar and rule-table tools. None of
// them touches a backend.
func newDeadlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Business-day calendar and deadline rule tools",
		Long: `Inspect the configured holiday calendars and deadline rule table.

  calc       count business days on a jurisdiction calendar
  rules      print the jurisdiction x category rule table
  calendars  list the loaded calendars and their holiday counts`,
	}
	cmd.AddCommand(newDeadlineCalcCmd(), newDeadlineRulesCmd(), newDeadlineCalendarsCmd())
	return cmd
}

func newDeadlineCalcCmd() *cobra.Command {
	var (
		jurisdiction string
		category     string
		from         string
		days         int
	)

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute a due date",
		Long: `Advance --from by a number of business days on the calendar of --jurisdiction.

The length is --days when given; otherwise it is looked up in the rule table by
jurisdiction and --category, falling back to the table default.`,
		Example: `  noticeflow deadline calc --jurisdiction TJMG --from 2025-04-17 --days 15
  noticeflow deadline calc --jurisdiction TRT-3 --category labor --from 2025-04-17`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			start, err := time.Parse(dateLayout, from)
			if err != nil {
				return fmt.Errorf("--from must be formatted as YYYY-MM-DD: %w", err)
			}
			engine, err := BuildEngine(cliCtx.Config)
			if err != nil {
				return err
			}

			calendars := engine.Calendars()
			j := calendars.Normalize(jurisdiction)
			res := calcResult{Jurisdiction: j, From: start.Format(dateLayout), Days: days, KnownCalendar: calendars.Known(j)}
			if !cmd.Flags().Changed("days") {
				res.Days, res.RuleID = lookupDays(engine.Table(), j, category)
			}
			if res.Days < 0 {
				return fmt.Errorf("--days must be >= 0, got %d", res.Days)
			}

			due, err := calendars.Advance(j, start, res.Days)
			if err != nil {
				return err
			}
			res.DueDate = due.Format(dateLayout)
			return PrintResult(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "jurisdiction code or alias (required)")
	cmd.Flags().StringVar(&category, "category", "", "case category used for the rule lookup")
	cmd.Flags().StringVar(&from, "from", "", "publication date, YYYY-MM-DD (required)")
	cmd.Flags().IntVar(&days, "days", 0, "business days to add; overrides the rule table")
	_ = cmd.MarkFlagRequired("jurisdiction")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func lookupDays(table *deadline.RuleTable, jurisdiction, category string) (int, string) {
	if row, ok := table.Lookup(jurisdiction, category); ok {
		return row.Days, row.RuleID
	}
	return table.DefaultDays(), "DEFAULT"
}

type calcResult struct {
	Jurisdiction  string `json:"jurisdiction"`
	From          string `json:"from"`
	Days          int    `json:"days"`
	RuleID        string `json:"rule_id,omitempty"`
	DueDate       string `json:"due_date"`
	KnownCalendar bool   `json:"known_calendar"`
}

func (r calcResult) String() string {
	s := fmt.Sprintf("%s + %d business days on %s = %s", r.From, r.Days, r.Jurisdiction, r.DueDate)
	if r.RuleID != "" {
		s += " (rule " + r.RuleID + ")"
	}
	if !r.KnownCalendar {
		s += " [no holiday calendar, weekends only]"
	}
	return s
}

func (r calcResult) TableHeaders() []string {
	return []string{"JURISDICTION", "FROM", "DAYS", "RULE", "DUE"}
}

func (r calcResult) TableRows() [][]string {
	return [][]string{{r.Jurisdiction, r.From, strconv.Itoa(r.Days), r.RuleID, r.DueDate}}
}

func newDeadlineRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the deadline rule table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			table, err := BuildRuleTable(cliCtx.Config.Rules)
			if err != nil {
				return err
			}
			return PrintResult(cmd, rulesResult{Rows: table.Rows(), DefaultDays: table.DefaultDays()})
		},
	}
}

type rulesResult struct {
	Rows        []deadline.Row `json:"rows"`
	DefaultDays int            `json:"default_days"`
}

func (r rulesResult) String() string {
	var sb strings.Builder
	for _, row := range r.Rows {
		fmt.Fprintf(&sb, "%s/%s: %d business days (%s)\n", row.Jurisdiction, row.Category, row.Days, row.RuleID)
	}
	fmt.Fprintf(&sb, "default: %d business days", r.DefaultDays)
	return sb.String()
}

func (r rulesResult) TableHeaders() []string {
	return []string{"JURISDICTION", "CATEGORY", "DAYS", "RULE"}
}

func (r rulesResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Rows)+1)
	for _, row := range r.Rows {
		rows = append(rows, []string{row.Jurisdiction, row.Category, strconv.Itoa(row.Days), row.RuleID})
	}
	return append(rows, []string{"*", "*", strconv.Itoa(r.DefaultDays), "DEFAULT"})
}

func newDeadlineCalendarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the loaded holiday calendars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			engine, err := BuildEngine(cliCtx.Config)
			if err != nil {
				return err
			}
			reg := engine.Calendars()
			out := calendarsResult{}
			for _, j := range reg.Jurisdictions() {
				out = append(out, calendarSummary{Jurisdiction: j, Holidays: reg.Calendar(j).Len()})
			}
			return PrintResult(cmd, out)
		},
	}
}

type calendarSummary struct {
	Jurisdiction string `json:"jurisdiction"`
	Holidays     int    `json:"holidays"`
}

type calendarsResult []calendarSummary

func (r calendarsResult) String() string {
	parts := make([]string, 0, len(r))
	for _, c := range r {
		parts = append(parts, fmt.Sprintf("%s (%d holidays)", c.Jurisdiction, c.Holidays))
	}
	return strings.Join(parts, "\n")
}

func (r calendarsResult) TableHeaders() []string { return []string{"JURISDICTION", "HOLIDAYS"} }

func (r calendarsResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, c := range r {
		rows = append(rows, []string{c.Jurisdiction, strconv.Itoa(c.Holidays)})
	}
	return rows
}
