package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/availability"
)

// Every user-facing string lives here so the machine logic stays readable
// and the copy can be reviewed in one place.

func greetingPrompt(clinicName string) string {
	return fmt.Sprintf(
		"Olá! Bem-vindo(a) à %s. 😊\nPosso ajudar você a *agendar*, *remarcar* ou *cancelar* uma consulta. O que você precisa?",
		clinicName,
	)
}

func servicePrompt(specialties []string) string {
	var b strings.Builder
	b.WriteString("Ótimo! Para qual especialidade você gostaria de agendar?\n")
	for _, sp := range specialties {
		fmt.Fprintf(&b, "• %s\n", sp)
	}
	b.WriteString("É só me dizer o nome da especialidade.")
	return b.String()
}

func slotMenuPrompt(service string, slots []availability.Slot) string {
	if len(slots) == 0 {
		return fmt.Sprintf(
			"No momento não encontrei horários livres para %s nos próximos dias. 😕\nQuer tentar outra especialidade ou falar com nossa equipe?",
			service,
		)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Perfeito, %s! Estes são os próximos horários disponíveis:\n", service)
	currentDay := ""
	for _, slot := range slots {
		if slot.Date != currentDay {
			currentDay = slot.Date
			fmt.Fprintf(&b, "\n📅 %s\n", formatDayHeading(slot.Date))
		}
		fmt.Fprintf(&b, "  • %s\n", slot.Time)
	}
	b.WriteString("\nQual dia e horário ficam melhores para você?")
	return b.String()
}

func contactPrompt() string {
	return "Quase lá! Agora preciso do seu *nome completo* e *e-mail* para concluir o agendamento."
}

func missingNamePrompt() string {
	return "Obrigado! Só falta o seu *nome completo*."
}

func missingEmailPrompt() string {
	return "Obrigado! Agora me envie o seu *e-mail*, por favor."
}

func summaryPrompt(conv *Conversation) string {
	return fmt.Sprintf(
		"Vamos confirmar? 📋\n\n• Especialidade: %s\n• Data: %s\n• Horário: %s\n• Nome: %s\n• E-mail: %s\n\nEstá tudo certo? Responda *sim* para confirmar ou *alterar* para recomeçar.",
		conv.SelectedService,
		formatDateBR(conv.SelectedDate),
		conv.SelectedTime,
		conv.CustomerName,
		conv.CustomerEmail,
	)
}

func completedPrompt(conv *Conversation) string {
	return fmt.Sprintf(
		"Prontinho! ✅ Sua consulta de %s está agendada para %s às %s.\nVocê receberá a confirmação no e-mail %s. Até lá!",
		conv.SelectedService,
		formatDateBR(conv.SelectedDate),
		conv.SelectedTime,
		conv.CustomerEmail,
	)
}

func softSuccessPrompt() string {
	return "Seu agendamento foi registrado! 📝 Nossa equipe vai confirmar os detalhes e você receberá uma mensagem em breve."
}

func approvalPendingPrompt(requestType string) string {
	action := "cancelamento"
	if requestType == "reschedule" {
		action = "reagendamento"
	}
	return fmt.Sprintf(
		"Recebi seu pedido de %s. 📨 Ele foi enviado para a nossa equipe e você receberá uma resposta por aqui em breve.",
		action,
	)
}

func helpPrompt(state State, specialties []string) string {
	switch state {
	case StateServiceSelection:
		return "Desculpe, não reconheci essa especialidade. 😕\n" + servicePrompt(specialties)
	case StateTimeSelection:
		return "Não consegui identificar o dia e horário. Você pode escrever, por exemplo, \"amanhã às 14h\" ou \"15/04 às 09:30\"."
	case StateContactInfo:
		return "Não consegui identificar seus dados. Pode me enviar seu *nome completo* e *e-mail*? Por exemplo: \"Meu nome é Ana Souza, ana@gmail.com\"."
	case StateConfirmation:
		return "Só preciso de um *sim* para confirmar ou *alterar* se quiser mudar algo. 😊"
	default:
		return "Desculpe, não entendi. Você quer *agendar*, *remarcar* ou *cancelar* uma consulta?"
	}
}

func apologyPrompt() string {
	return "Desculpe, tive um problema por aqui. 😕 Pode tentar novamente em instantes?"
}

var weekdayNamesBR = map[time.Weekday]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

func formatDayHeading(isoDate string) string {
	d, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return isoDate
	}
	return fmt.Sprintf("%s, %s", weekdayNamesBR[d.Weekday()], d.Format("02/01"))
}

func formatDateBR(isoDate string) string {
	d, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return isoDate
	}
	return d.Format("02/01/2006")
}
