package extraction

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/conversation"
	"github.com/turtacn/NoticeFlow/pkg/errors"
)

const intentSystemPrompt = `You classify messages an attorney sends to a court-notification assistant.
Answer with one JSON object, no prose.`

const intentUserPrompt = `Intents:
- buscar_intimacoes: notifications of a day ("intimações de hoje", "do dia 10/03")
- consultar_prazos_vencendo: deadlines due in the next days
- consultar_comparecimento: hearings, expert exams or trials ("próxima audiência")
- consultar_detalhes_intimacao: details of one notification by id
- outro: anything else

Return:
{
  "intent": "<one of the intents>",
  "entities": {
    "data": "YYYY-MM-DD" or null,
    "dataRelativa": "hoje|ontem|amanha" or null,
    "tipoComparecimento": "AUDIENCIA|PERICIA|PAUTA_DE_JULGAMENTO" or null,
    "idIntimacao": "<id>" or null,
    "tipoDetalhe": "prazo|resumo|acoes_sugeridas|todos" or null,
    "proximo": true|false
  },
  "confidence": <0..1>
}

MENSAGEM:
`

type wireIntent struct {
	Intent   string `json:"intent"`
	Entities struct {
		Date           *string         `json:"data"`
		RelativeDate   *string         `json:"dataRelativa"`
		AppearanceType *string         `json:"tipoComparecimento"`
		RecordID       json.RawMessage `json:"idIntimacao"`
		DetailKind     *string         `json:"tipoDetalhe"`
		Next           bool            `json:"proximo"`
	} `json:"entities"`
	Confidence float64 `json:"confidence"`
}

var intentKinds = map[string]conversation.IntentKind{
	"buscar_intimacoes":            conversation.IntentByDate,
	"consultar_prazos_vencendo":    conversation.IntentUpcomingDeadlines,
	"consultar_comparecimento":     conversation.IntentNextAppearance,
	"consultar_detalhes_intimacao": conversation.IntentRecordDetail,
	"outro":                        conversation.IntentUnknown,
}

var relativeDates = map[string]conversation.RelativeDate{
	"hoje":   conversation.RelativeToday,
	"ontem":  conversation.RelativeYesterday,
	"amanha": conversation.RelativeTomorrow,
	"amanhã": conversation.RelativeTomorrow,
}

var detailKinds = map[string]conversation.DetailKind{
	"prazo":           conversation.DetailDeadline,
	"resumo":          conversation.DetailSummary,
	"acoes_sugeridas": conversation.DetailActions,
	"todos":           conversation.DetailAll,
}

// LLMClassifier classifies inbound messages with the completion endpoint.
type LLMClassifier struct {
	client *Client
}

var _ conversation.Classifier = (*LLMClassifier)(nil)

func NewLLMClassifier(client *Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

func (l *LLMClassifier) Classify(ctx context.Context, text string) (conversation.Intent, error) {
	c, err := l.client.complete(ctx, "classify", []chatMessage{
		{Role: "system", Content: intentSystemPrompt},
		{Role: "user", Content: intentUserPrompt + text},
	})
	if err != nil {
		return conversation.Intent{}, errors.Wrap(err, errors.ErrCodeIntentUnavailable, "intent classification failed")
	}
	return ParseIntent(c.Content)
}

// ParseIntent maps a classifier answer onto an Intent. Unknown intent names
// become IntentUnknown rather than an error.
func ParseIntent(raw string) (conversation.Intent, error) {
	var w wireIntent
	if err := json.Unmarshal([]byte(StripFences(raw)), &w); err != nil {
		return conversation.Intent{}, errors.Wrap(err, errors.ErrCodeIntentUnavailable, "malformed intent answer")
	}

	kind, ok := intentKinds[strings.ToLower(strings.TrimSpace(w.Intent))]
	if !ok {
		kind = conversation.IntentUnknown
	}

	e := conversation.Entities{
		RelativeDate:   relativeDates[strings.ToLower(deref(w.Entities.RelativeDate))],
		AppearanceType: appearanceTypes[upper(w.Entities.AppearanceType)],
		RecordID:       recordID(w.Entities.RecordID),
		DetailKind:     detailKinds[strings.ToLower(deref(w.Entities.DetailKind))],
		Next:           w.Entities.Next,
	}
	if d := deref(w.Entities.Date); d != "" {
		if t, err := time.Parse("2006-01-02", d); err == nil {
			e.Date = &t
		}
	}
	if kind == conversation.IntentRecordDetail && e.DetailKind == "" {
		e.DetailKind = conversation.DetailAll
	}

	conf := w.Confidence
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}
	return conversation.Intent{Kind: kind, Entities: e, Confidence: conf}, nil
}

// recordID accepts the id as a string or a bare number.
func recordID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	return s
}
