package inbound

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/conversation"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/pkg/textfold"
)

const keywordConfidence = 0.9

var (
	dateRe     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}))?\b`)
	// numberRe matches whole numeric tokens, so the digit runs of a process
	// number like 5001234-56.2025.8.13.0024 stay one token.
	numberRe = regexp.MustCompile(`\b\d+(?:[.\-]\d+)*\b`)
)

const minRecordIDLen = 6

var relativeWords = map[string]conversation.RelativeDate{
	"hoje":   conversation.RelativeToday,
	"ontem":  conversation.RelativeYesterday,
	"amanha": conversation.RelativeTomorrow,
}

var appearanceWords = map[string]notice.AppearanceType{
	"audiencia":      notice.AppearanceHearing,
	"audiencias":     notice.AppearanceHearing,
	"pericia":        notice.AppearanceExpertExam,
	"pericias":       notice.AppearanceExpertExam,
	"julgamento":     notice.AppearanceTrial,
	"julgamentos":    notice.AppearanceTrial,
	"pauta":          notice.AppearanceTrial,
	"comparecimento": notice.AppearanceNone,
}

var detailWords = map[string]conversation.DetailKind{
	"prazo":  conversation.DetailDeadline,
	"resumo": conversation.DetailSummary,
	"acoes":  conversation.DetailActions,
	"acao":   conversation.DetailActions,
}

// KeywordClassifier recognises the supported questions from accent-folded
// keywords. It is used when the model-backed classifier is disabled.
type KeywordClassifier struct {
	now func() time.Time
}

var _ conversation.Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier returns a classifier that resolves dates without a
// year against now.
func NewKeywordClassifier(now func() time.Time) *KeywordClassifier {
	if now == nil {
		now = time.Now
	}
	return &KeywordClassifier{now: now}
}

// Classify never fails; text it cannot place is IntentUnknown with zero
// confidence.
func (c *KeywordClassifier) Classify(_ context.Context, text string) (conversation.Intent, error) {
	var e conversation.Entities
	if m := dateRe.FindStringSubmatch(text); m != nil {
		e.Date = c.date(m)
		text = strings.Replace(text, m[0], " ", 1)
	}
	e.RecordID = findRecordID(text)

	var (
		appearance, deadline, notices bool
		detail                        conversation.DetailKind
	)
	for _, w := range textfold.Words(text) {
		if rel, ok := relativeWords[w]; ok && e.RelativeDate == conversation.RelativeNone {
			e.RelativeDate = rel
		}
		if kind, ok := appearanceWords[w]; ok {
			appearance = true
			if e.AppearanceType == notice.AppearanceNone {
				e.AppearanceType = kind
			}
		}
		if d, ok := detailWords[w]; ok && detail == "" {
			detail = d
		}
		switch {
		case strings.HasPrefix(w, "proxim"):
			e.Next = true
		case strings.HasPrefix(w, "prazo"), strings.HasPrefix(w, "venc"):
			deadline = true
		case strings.HasPrefix(w, "intimac"):
			notices = true
		}
	}

	intent := conversation.Intent{Kind: conversation.IntentUnknown, Entities: e}
	switch {
	case e.RecordID != "":
		intent.Kind = conversation.IntentRecordDetail
		intent.Entities.DetailKind = detail
		if detail == "" {
			intent.Entities.DetailKind = conversation.DetailAll
		}
	case appearance:
		intent.Kind = conversation.IntentNextAppearance
		if e.Date == nil && e.RelativeDate == conversation.RelativeNone {
			intent.Entities.Next = true
		}
	case deadline:
		intent.Kind = conversation.IntentUpcomingDeadlines
	case notices:
		intent.Kind = conversation.IntentByDate
	default:
		return intent, nil
	}
	intent.Confidence = keywordConfidence
	return intent, nil
}

// findRecordID returns the first plain run of at least minRecordIDLen digits.
// Punctuated numbers such as process numbers are not record ids.
func findRecordID(text string) string {
	for _, tok := range numberRe.FindAllString(text, -1) {
		if len(tok) >= minRecordIDLen && !strings.ContainsAny(tok, ".-") {
			return tok
		}
	}
	return ""
}

// date turns a dd/mm[/yyyy] match into a civil date; an impossible date is
// dropped.
func (c *KeywordClassifier) date(m []string) *time.Time {
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := c.now().Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return nil
	}
	return &t
}
