package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
)

const extractSystemPrompt = `You analyse Brazilian court notifications (intimações).
Extract only what the text states and answer with one JSON object, no prose.`

const extractUserPrompt = `Return this JSON object for the notification below:
{
  "tipo_ato": "DESPACHO|SENTENÇA|DECISÃO|...",
  "prazo": <deadline in business days stated in the text, or null>,
  "base_legal_prazo": "<legal basis of the deadline>",
  "resumo": "<summary, at most 150 characters>",
  "reu": "<defendant or null>",
  "consequencias_praticas": "<practical consequences>",
  "acoes_sugeridas": ["<suggested action>", "..."],
  "status_sistema": "<short status label>",
  "is_juizado": <true|false>,
  "is_recurso_inominado": <true|false>,
  "is_contrarazoes_inominado": <true|false>,
  "tipo_comparecimento": "AUDIENCIA|PERICIA|PAUTA_DE_JULGAMENTO" or null,
  "data_comparecimento": "YYYY-MM-DD" or null,
  "horario_comparecimento": "HH:MM" or null,
  "instancia": "PRIMEIRA|SEGUNDA",
  "categoria_processual": "CIVIL|JUIZADO|CRIMINAL|TRABALHO"
}

TEXTO_INTIMACAO:
`

// wireResult is the model's answer, keyed the way the prompt asks.
type wireResult struct {
	ActType               string          `json:"tipo_ato"`
	Deadline              json.RawMessage `json:"prazo"`
	LegalBasis            string          `json:"base_legal_prazo"`
	Summary               string          `json:"resumo"`
	Defendant             *string         `json:"reu"`
	PracticalConsequences string          `json:"consequencias_praticas"`
	SuggestedActions      []string        `json:"acoes_sugeridas"`
	SystemStatus          string          `json:"status_sistema"`
	SmallClaimsCourt      bool            `json:"is_juizado"`
	SmallClaimsAppeal     bool            `json:"is_recurso_inominado"`
	SmallClaimsCounter    bool            `json:"is_contrarazoes_inominado"`
	AppearanceType        *string         `json:"tipo_comparecimento"`
	AppearanceDate        *string         `json:"data_comparecimento"`
	AppearanceTime        *string         `json:"horario_comparecimento"`
	Instance              *string         `json:"instancia"`
	Category              *string         `json:"categoria_processual"`
}

var appearanceTypes = map[string]notice.AppearanceType{
	"AUDIENCIA":           notice.AppearanceHearing,
	"PERICIA":             notice.AppearanceExpertExam,
	"PAUTA_DE_JULGAMENTO": notice.AppearanceTrial,
}

var instances = map[string]notice.Instance{
	"PRIMEIRA": notice.InstanceFirst,
	"SEGUNDA":  notice.InstanceSecond,
}

var categories = map[string]notice.Category{
	"CIVIL":    notice.CategoryCivil,
	"JUIZADO":  notice.CategorySmallClaims,
	"CRIMINAL": notice.CategoryCriminal,
	"TRABALHO": notice.CategoryLabor,
}

// Extractor turns notification text into an ExtractionOutcome.
type Extractor struct {
	client *Client
	logger logging.Logger
}

func NewExtractor(client *Client, log logging.Logger) *Extractor {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Extractor{client: client, logger: log}
}

// Extract never returns an error: transport and parse problems become an
// ExtractionFailure so the caller narrows the outcome once.
func (e *Extractor) Extract(ctx context.Context, text string) notice.ExtractionOutcome {
	if strings.TrimSpace(text) == "" {
		return notice.ExtractionFailed("empty notification text", "", notice.ExtractionUsage{Model: e.client.Model()})
	}

	c, err := e.client.complete(ctx, "extract", []chatMessage{
		{Role: "system", Content: extractSystemPrompt},
		{Role: "user", Content: extractUserPrompt + text},
	})
	usage := notice.ExtractionUsage{
		Model:            e.client.Model(),
		PromptTokens:     c.PromptTokens,
		CompletionTokens: c.CompletionTokens,
		Latency:          c.Latency,
	}
	if err != nil {
		e.logger.Warn("Extraction call failed", logging.Err(err))
		return notice.ExtractionFailed(err.Error(), c.Content, usage)
	}

	result, reason := Parse(c.Content)
	if reason != "" {
		return notice.ExtractionFailed(reason, c.Content, usage)
	}
	return notice.Extracted(result, usage)
}

// Parse validates a model answer. A non-empty reason means the answer is
// unusable.
func Parse(raw string) (notice.ExtractionResult, string) {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return notice.ExtractionResult{}, "empty answer"
	}

	var w wireResult
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&w); err != nil {
		return notice.ExtractionResult{}, "invalid JSON: " + err.Error()
	}

	days, ok := parseDeadline(w.Deadline)
	if !ok {
		return notice.ExtractionResult{}, "deadline is not a non-negative integer: " + string(w.Deadline)
	}

	r := notice.ExtractionResult{
		ActType:                     strings.TrimSpace(w.ActType),
		ExplicitDeadlineDays:        days,
		LegalBasis:                  w.LegalBasis,
		Summary:                     w.Summary,
		Defendant:                   deref(w.Defendant),
		PracticalConsequences:       w.PracticalConsequences,
		SuggestedActions:            w.SuggestedActions,
		SystemStatus:                w.SystemStatus,
		SmallClaimsCourt:            w.SmallClaimsCourt,
		SmallClaimsAppeal:           w.SmallClaimsAppeal,
		SmallClaimsCounterArguments: w.SmallClaimsCounter,
		AppearanceType:              appearanceTypes[upper(w.AppearanceType)],
		AppearanceDate:              parseDay(deref(w.AppearanceDate)),
		AppearanceTime:              parseClock(deref(w.AppearanceTime)),
		Instance:                    instances[upper(w.Instance)],
		Category:                    categories[upper(w.Category)],
	}
	if r.ActType == "" && r.Summary == "" && r.ExplicitDeadlineDays == nil && !r.AppearanceType.Valid() {
		return notice.ExtractionResult{}, "answer carries no usable field"
	}
	if r.SuggestedActions == nil {
		r.SuggestedActions = []string{}
	}
	return r, ""
}

// parseDeadline accepts null, an integer, or a numeric string.
func parseDeadline(raw json.RawMessage) (*int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, true
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil, false
	}
	return &n, true
}

func parseDay(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func parseClock(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15h04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func upper(s *string) string {
	return strings.ToUpper(strings.TrimSpace(deref(s)))
}
