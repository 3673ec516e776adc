package dispatch

import (
	"bytes"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

const (
	defaultReminderTime = "09:00"
	reminderSlot        = time.Hour
	calendarBaseURL     = "https://www.google.com/calendar/render"
	notAvailable        = "Não disponível"
)

const header = `INTIMAÇÃO – {{.Court}} ({{.Instance}})

Processo nº {{.ProcessNumber}}
Partes: {{.Plaintiff}} *x* {{.Defendant}}
⸻
`

const footer = `⸻

{{.DocumentType}}: ID {{.ExternalID}}
Resumo: {{.Summary}}
⸻

Link do processo:
{{.Link}}
⸻

🗓️ Adicione lembrete no Google Agenda
{{.CalendarLink}}`

const deadlineBody = `
Data da disponibilização: {{.PublicationDate}}
Prazo: {{.Days}} dias (Regra aplicada: {{.RuleID}})
Prazo para manifestação: {{.DueDate}}
`

const appearanceBody = `
Compromisso: {{.AppearanceLabel}}
Data: {{.AppearanceDate}}
Hora: {{.AppearanceTime}}
`

var appearanceLabels = map[notice.AppearanceType]string{
	notice.AppearanceHearing:    "Audiência",
	notice.AppearanceExpertExam: "Perícia",
	notice.AppearanceTrial:      "Pauta de julgamento",
}

// message is the data both templates render.
type message struct {
	Court           string
	Instance        string
	ProcessNumber   string
	Plaintiff       string
	Defendant       string
	PublicationDate string
	Days            int
	RuleID          string
	DueDate         string
	AppearanceLabel string
	AppearanceDate  string
	AppearanceTime  string
	DocumentType    string
	ExternalID      string
	Summary         string
	Link            string
	CalendarLink    string
}

// Renderer turns a NotificationView into the outbound message text.
type Renderer struct {
	deadline   *template.Template
	appearance *template.Template
	loc        *time.Location
}

// NewRenderer parses the message templates. loc is the zone calendar
// reminders are scheduled in; nil means UTC.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		deadline:   template.Must(template.New("deadline").Parse(header + deadlineBody + footer)),
		appearance: template.Must(template.New("appearance").Parse(header + appearanceBody + footer)),
		loc:        loc,
	}
}

// Render picks the appearance template for appearance-anchored
// notifications and the deadline template otherwise.
func (r *Renderer) Render(v notice.NotificationView) (string, error) {
	m := message{
		Court:           or(v.Case.Jurisdiction, v.Case.OrganName),
		Instance:        instanceLabel(v.Case.Instance),
		ProcessNumber:   or(v.Case.FormattedProcessNumber, v.Case.ProcessNumber),
		Plaintiff:       or(v.Case.Plaintiff, notAvailable),
		Defendant:       or(v.Case.Defendant, notAvailable),
		PublicationDate: formatDate(&v.PublicationDate),
		Days:            v.DeadlineDays,
		RuleID:          v.RuleID,
		DueDate:         formatDate(v.DueDate),
		DocumentType:    or(v.DocumentType, "Documento"),
		ExternalID:      v.ExternalID,
		Summary:         or(v.Summary, notAvailable),
		Link:            or(v.Link, notAvailable),
		CalendarLink:    r.CalendarLink(v),
	}

	tmpl := r.deadline
	if v.IsAppearance() {
		tmpl = r.appearance
		m.AppearanceLabel = appearanceLabels[v.AppearanceType]
		m.AppearanceDate = formatDate(v.AppearanceDate)
		m.AppearanceTime = or(v.AppearanceTime, notAvailable)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, m); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeRenderFailed, "failed to render message").
			WithDetail("external_id=" + v.ExternalID)
	}
	return buf.String(), nil
}

// CalendarLink builds a Google Calendar "add event" link for the due date or
// appearance date, at the appearance time or 09:00, lasting one hour. It
// returns an empty string when the notification has no date.
func (r *Renderer) CalendarLink(v notice.NotificationView) string {
	day := v.DueDate
	clock := defaultReminderTime
	if v.IsAppearance() {
		day = v.AppearanceDate
		if v.AppearanceTime != "" {
			clock = v.AppearanceTime
		}
	}
	if day == nil {
		return ""
	}

	hm, err := time.Parse("15:04", clock)
	if err != nil {
		hm, _ = time.Parse("15:04", defaultReminderTime)
	}
	y, mo, d := day.Date()
	start := time.Date(y, mo, d, hm.Hour(), hm.Minute(), 0, 0, r.loc).UTC()
	end := start.Add(reminderSlot)

	title := strings.TrimSpace(strings.Join([]string{v.ActType, appearanceLabels[v.AppearanceType]}, " "))
	title = strings.TrimSpace(title + " | " + or(v.Case.FormattedProcessNumber, v.Case.ProcessNumber))

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", title)
	q.Set("details", or(v.Summary, notAvailable))
	q.Set("dates", start.Format("20060102T150405Z")+"/"+end.Format("20060102T150405Z"))
	return calendarBaseURL + "?" + q.Encode()
}

func instanceLabel(i notice.Instance) string {
	if i == notice.InstanceSecond {
		return "2ª Instância"
	}
	return "1ª Instância"
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	return t.Format("02/01/2006")
}

func or(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
