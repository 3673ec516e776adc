package inbound

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/NoticeFlow/internal/domain/conversation"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
)

// Fixed replies.
const (
	replyNotRegistered = "Desculpe, você não está cadastrado no nosso banco de dados. Aguarde o nosso suporte."
	replyQueryFailed   = "Desculpe, ocorreu um erro ao consultar suas intimações. Tente novamente em alguns instantes."
	replyMissingID     = "Por favor, informe o ID da intimação que você quer consultar. Exemplo: \"Detalhes da intimação 256927443\""
	replyMedia         = "Desculpe, no momento só consigo processar mensagens de texto. Por favor, envie sua pergunta em texto."
	replyInteractive   = "Interação recebida! Em breve implementaremos suporte completo para botões e listas."
	replyUnknownType   = "Tipo de mensagem não suportado. Por favor, envie uma mensagem de texto."
	replyByDateHint    = "Entendi que você quer saber sobre suas intimações, mas não consegui identificar a data. Tente ser mais específico, como:\n\n• \"Minhas intimações de hoje\"\n• \"Intimações de ontem\"\n• \"Quais intimações do dia 10/07/2025\""
	replyOutOfScope    = "Por enquanto só consigo ajudar com consultas de intimações, prazos e comparecimentos. Tente perguntar sobre suas intimações de uma data específica."
)

const replyHelp = `Olá! Não entendi exatamente o que você precisa.

Por aqui posso te ajudar com:

📋 *Suas intimações* - "Quais minhas intimações hoje?"
⏰ *Prazos vencendo* - "Tenho prazos vencendo hoje?"
📅 *Comparecimentos* - "Tenho audiência amanhã?"
🔍 *Detalhes específicos* - "Detalhes da intimação 256927443"

Tente uma dessas opções ou me pergunte de outra forma! 😊`

const (
	noSummary = "Sem resumo disponível"
	noActions = "Sem ações sugeridas"
	noTime    = "horário não informado"
)

var appearanceNames = map[notice.AppearanceType]string{
	notice.AppearanceHearing:    "Audiência",
	notice.AppearanceExpertExam: "Perícia",
	notice.AppearanceTrial:      "Pauta de Julgamento",
}

// helpThreshold is the confidence below which the full help text is sent
// instead of a hint.
const helpThreshold = 0.3

func fallbackReply(intent conversation.Intent, classifyErr error) string {
	switch {
	case classifyErr != nil, intent.Kind == conversation.IntentUnknown, intent.Confidence < helpThreshold:
		return replyHelp
	case intent.Kind == conversation.IntentByDate:
		return replyByDateHint
	default:
		return replyOutOfScope
	}
}

func replyRecordNotFound(id string) string {
	return fmt.Sprintf("Não encontrei a intimação %s no seu nome. Verifique o ID e tente novamente.", id)
}

func formatRecords(name string, views []notice.NotificationView, day, today time.Time) string {
	label := dayLabel(day, today)
	if len(views) == 0 {
		return fmt.Sprintf("%s, não encontrei intimações para %s.", name, label)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, %s você teve %s:\n\n", name, label, count(len(views), "intimação", "intimações"))
	for _, v := range views {
		deadline := fmt.Sprintf("Prazo: *%d dias*", v.DeadlineDays)
		if v.DueDate != nil {
			deadline += fmt.Sprintf(" (até %s)", date(*v.DueDate))
		}
		fmt.Fprintf(&sb, "📋 Intimação *%s*, *%s* %s, proc. *%s*, publicada em *%s*. %s. %s.\n\n",
			v.ExternalID, court(v), instance(v.Case.Instance), processNumber(v),
			date(v.PublicationDate), deadline, or(v.Summary, noSummary))
	}
	return strings.TrimSpace(sb.String())
}

func formatDeadlines(name string, views []notice.NotificationView, until time.Time) string {
	if len(views) == 0 {
		return fmt.Sprintf("%s, não encontrei prazos vencendo até %s.", name, date(until))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, você tem %s até %s:\n\n", name,
		count(len(views), "prazo vencendo", "prazos vencendo"), date(until))
	for _, v := range views {
		fmt.Fprintf(&sb, "⏰ Prazo *%d dias* (até *%s*), proc. *%s*, %s. %s.\n\n",
			v.DeadlineDays, date(*v.DueDate), processNumber(v), court(v), or(v.Summary, noSummary))
	}
	return strings.TrimSpace(sb.String())
}

func formatAppearances(name string, views []notice.NotificationView, day, today time.Time) string {
	if len(views) == 0 {
		return fmt.Sprintf("%s, não encontrei comparecimentos para %s.", name, dayLabel(day, today))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, %s você tem %s:\n\n", name, dayLabel(day, today),
		count(len(views), "comparecimento", "comparecimentos"))
	for _, v := range views {
		fmt.Fprintf(&sb, "📅 *%s* do proc. *%s* no dia *%s* às *%s*.\n\n",
			appearanceName(v.AppearanceType), processNumber(v), date(*v.AppearanceDate), or(v.AppearanceTime, noTime))
	}
	return strings.TrimSpace(sb.String())
}

func formatNextAppearance(name string, v *notice.NotificationView) string {
	if v == nil {
		return fmt.Sprintf("%s, não encontrei próximos comparecimentos agendados.", name)
	}
	return fmt.Sprintf("%s, seu próximo comparecimento é um(a) *%s* do proc. *%s* no dia *%s* às *%s*.",
		name, appearanceName(v.AppearanceType), processNumber(*v), date(*v.AppearanceDate), or(v.AppearanceTime, noTime))
}

func formatDetail(name string, v notice.NotificationView, kind conversation.DetailKind) string {
	all := kind == conversation.DetailAll || kind == ""

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, aqui estão os detalhes da intimação *%s*:\n\n", name, v.ExternalID)
	if all || kind == conversation.DetailDeadline {
		switch {
		case v.IsAppearance():
			fmt.Fprintf(&sb, "📅 *Comparecimento:* %s em %s às %s\n",
				appearanceName(v.AppearanceType), date(*v.AppearanceDate), or(v.AppearanceTime, noTime))
		case v.DueDate != nil:
			fmt.Fprintf(&sb, "⏰ *Prazo:* %d dias (até %s)\n", v.DeadlineDays, date(*v.DueDate))
		default:
			fmt.Fprintf(&sb, "⏰ *Prazo:* %d dias\n", v.DeadlineDays)
		}
	}
	if all || kind == conversation.DetailSummary {
		fmt.Fprintf(&sb, "📋 *Resumo:* %s\n", or(v.Summary, noSummary))
	}
	if all || kind == conversation.DetailActions {
		actions := noActions
		if len(v.SuggestedActions) > 0 {
			actions = strings.Join(v.SuggestedActions, ", ")
		}
		fmt.Fprintf(&sb, "✅ *Ações sugeridas:* %s\n", actions)
	}
	if all {
		fmt.Fprintf(&sb, "\n📄 *Processo:* %s\n", processNumber(v))
		fmt.Fprintf(&sb, "🏛️ *Tribunal:* %s\n", court(v))
		fmt.Fprintf(&sb, "📅 *Data publicação:* %s\n", date(v.PublicationDate))
	}
	return strings.TrimSpace(sb.String())
}

func count(n int, singular, plural string) string {
	if n == 1 {
		return "*1* " + singular
	}
	return fmt.Sprintf("*%d* %s", n, plural)
}

// dayLabel names day relative to today when it is adjacent.
func dayLabel(day, today time.Time) string {
	switch {
	case day.Equal(today):
		return "hoje"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "ontem"
	case day.Equal(today.AddDate(0, 0, 1)):
		return "amanhã"
	}
	return date(day)
}

func date(t time.Time) string {
	return t.Format("02/01/2006")
}

func court(v notice.NotificationView) string {
	return or(v.Case.Jurisdiction, v.Case.OrganName)
}

func processNumber(v notice.NotificationView) string {
	return or(v.Case.FormattedProcessNumber, v.Case.ProcessNumber)
}

func instance(i notice.Instance) string {
	if i == notice.InstanceSecond {
		return "2ª Instância"
	}
	return "1ª Instância"
}

func appearanceName(a notice.AppearanceType) string {
	if n, ok := appearanceNames[a]; ok {
		return n
	}
	return string(a)
}

func or(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
