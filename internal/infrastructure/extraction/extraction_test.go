package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/domain/conversation"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

// completionServer answers every request with content and records the last
// request body.
func completionServer(t *testing.T, status int, content string) (*httptest.Server, *chatRequest) {
	t.Helper()
	var last chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		w.WriteHeader(status)
		if status != http.StatusOK {
			return
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": content}}},
			"usage":   map[string]int{"prompt_tokens": 900, "completion_tokens": 120},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func newTestClient(url string) *Client {
	return NewClient(config.ExtractionConfig{
		BaseURL: url + "/v1",
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	}, nil, nil)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1} "))
	assert.Equal(t, "", StripFences("```\n```"))
}

func TestExtract_FullAnswer(t *testing.T) {
	answer := "```json\n" + `{
		"tipo_ato": "DESPACHO",
		"prazo": "15",
		"base_legal_prazo": "art. 335 CPC",
		"resumo": "Prazo para contestação",
		"reu": "ACME LTDA",
		"consequencias_praticas": "Revelia",
		"acoes_sugeridas": ["Apresentar contestação"],
		"status_sistema": "AGUARDANDO",
		"is_juizado": false,
		"is_recurso_inominado": false,
		"is_contrarazoes_inominado": false,
		"tipo_comparecimento": null,
		"data_comparecimento": null,
		"horario_comparecimento": null,
		"instancia": "PRIMEIRA",
		"categoria_processual": "CIVIL"
	}` + "\n```"
	srv, req := completionServer(t, http.StatusOK, answer)
	c := newTestClient(srv.URL)

	out := NewExtractor(c, nil).Extract(context.Background(), "Fica a parte intimada...")
	r, _, ok := out.Result()
	require.True(t, ok)
	require.NotNil(t, r.ExplicitDeadlineDays)
	assert.Equal(t, 15, *r.ExplicitDeadlineDays)
	assert.Equal(t, "DESPACHO", r.ActType)
	assert.Equal(t, "ACME LTDA", r.Defendant)
	assert.Equal(t, notice.InstanceFirst, r.Instance)
	assert.Equal(t, notice.CategoryCivil, r.Category)
	assert.Equal(t, []string{"Apresentar contestação"}, r.SuggestedActions)
	assert.False(t, r.HasAppearance())

	assert.Equal(t, defaultModel, out.Usage.Model)
	assert.Equal(t, 900, out.Usage.PromptTokens)
	assert.Equal(t, 120, out.Usage.CompletionTokens)

	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "Fica a parte intimada...")
}

func TestExtract_TransportFailureBecomesFailure(t *testing.T) {
	srv, _ := completionServer(t, http.StatusBadGateway, "")
	out := NewExtractor(newTestClient(srv.URL), nil).Extract(context.Background(), "texto")

	_, failure, ok := out.Result()
	assert.False(t, ok)
	assert.Contains(t, failure.Reason, string(pkgerrors.ErrCodeExtractionUnavailable))
}

func TestExtract_EmptyTextSkipsCall(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	_, failure, ok := NewExtractor(c, nil).Extract(context.Background(), "   ").Result()
	assert.False(t, ok)
	assert.Equal(t, "empty notification text", failure.Reason)
}

func TestParse(t *testing.T) {
	t.Run("appearance", func(t *testing.T) {
		r, reason := Parse(`{"tipo_ato":"INTIMAÇÃO","prazo":null,"tipo_comparecimento":"audiencia",
			"data_comparecimento":"24/06/2025","horario_comparecimento":"14h30","categoria_processual":"JUIZADO"}`)
		require.Empty(t, reason)
		assert.Nil(t, r.ExplicitDeadlineDays)
		assert.Equal(t, notice.AppearanceHearing, r.AppearanceType)
		require.NotNil(t, r.AppearanceDate)
		assert.Equal(t, "2025-06-24", r.AppearanceDate.Format("2006-01-02"))
		assert.Equal(t, "14:30", r.AppearanceTime)
		assert.Equal(t, notice.CategorySmallClaims, r.Category)
		assert.True(t, r.HasAppearance())
	})

	t.Run("zero deadline is explicit", func(t *testing.T) {
		r, reason := Parse(`{"tipo_ato":"DESPACHO","prazo":0}`)
		require.Empty(t, reason)
		require.NotNil(t, r.ExplicitDeadlineDays)
		assert.Equal(t, 0, *r.ExplicitDeadlineDays)
	})

	t.Run("invalid time is dropped", func(t *testing.T) {
		r, reason := Parse(`{"tipo_ato":"DESPACHO","horario_comparecimento":"tarde"}`)
		require.Empty(t, reason)
		assert.Empty(t, r.AppearanceTime)
	})

	failures := []struct {
		name, raw string
	}{
		{"negative deadline", `{"tipo_ato":"DESPACHO","prazo":-3}`},
		{"non numeric deadline", `{"tipo_ato":"DESPACHO","prazo":"quinze"}`},
		{"array answer", `[1,2]`},
		{"prose", `Não foi possível analisar.`},
		{"empty object", `{}`},
		{"empty", "```json\n```"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, reason := Parse(tc.raw)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestLLMClassifier_Classify(t *testing.T) {
	answer := `{"intent":"consultar_comparecimento","entities":{"tipoComparecimento":"PERICIA","proximo":true},"confidence":0.92}`
	srv, _ := completionServer(t, http.StatusOK, answer)

	intent, err := NewLLMClassifier(newTestClient(srv.URL)).Classify(context.Background(), "qual minha próxima perícia?")
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentNextAppearance, intent.Kind)
	assert.Equal(t, notice.AppearanceExpertExam, intent.Entities.AppearanceType)
	assert.True(t, intent.Entities.Next)
	assert.InDelta(t, 0.92, intent.Confidence, 1e-9)
}

func TestLLMClassifier_Unavailable(t *testing.T) {
	srv, _ := completionServer(t, http.StatusInternalServerError, "")
	_, err := NewLLMClassifier(newTestClient(srv.URL)).Classify(context.Background(), "oi")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeIntentUnavailable))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeExtractionUnavailable))
}

func TestParseIntent(t *testing.T) {
	i, err := ParseIntent(`{"intent":"buscar_intimacoes","entities":{"data":"2025-03-10","dataRelativa":null},"confidence":0.8}`)
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentByDate, i.Kind)
	require.NotNil(t, i.Entities.Date)
	assert.Equal(t, 10, i.Entities.Date.Day())

	i, err = ParseIntent(`{"intent":"consultar_detalhes_intimacao","entities":{"idIntimacao":42},"confidence":1.4}`)
	require.NoError(t, err)
	assert.Equal(t, "42", i.Entities.RecordID)
	assert.Equal(t, conversation.DetailAll, i.Entities.DetailKind)
	assert.Equal(t, 1.0, i.Confidence)

	i, err = ParseIntent(`{"intent":"pedir_pizza","entities":{"dataRelativa":"amanha"},"confidence":0.9}`)
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentUnknown, i.Kind)
	assert.Equal(t, conversation.RelativeTomorrow, i.Entities.RelativeDate)

	_, err = ParseIntent("not json")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeIntentUnavailable))
}
