package conversation

import (
	"fmt"
	"strings"

	"github.com/set-night/npsbot/internal/domain"
)

const (
	StartRequiredMessage = "Para começar, digite /start."

	AskScoreMessage = "Maravilha! Por favor, atribua uma nota de 0 a 10 sobre a sua experiência usando a Tess."

	DetailsMessage = "Entendi, basta digitar no teclado do celular mesmo uma nota de 0 a 10 sobre a sua experiência usando a Tess."

	DeclineMessage = "Sem problemas! Quando quiser participar, é só digitar /start novamente."

	ConfirmationFallbackMessage = "Você gostaria de deixar seu feedback agora? Responda sim ou não."

	AlreadyRegisteredMessage = "Obrigado! Sua avaliação já foi registrada.\n\n" +
		"Se quiser fazer uma nova avaliação, digite /start novamente."

	FeedbackThanksMessage = "Muito obrigado pelo seu feedback detalhado! Vamos usar isso para melhorar nossos serviços."

	ClarifyFallbackMessage = "Não consegui identificar uma nota de 0 a 10 na sua mensagem. " +
		"Pode me dizer quanto você nos daria? Por exemplo: 'Dou nota 8' ou simplesmente '8'."

	RestartMessage = "Desculpe, algo deu errado. Vamos recomeçar? Digite /start."
)

const greetingTemplate = "Olá%s! Tudo bem?\n\n" +
	"Sou a Tess, assistente de qualidade da Pareto.\n\n" +
	"Gostaríamos muito de saber como foi a sua experiência conosco, " +
	"posso te dar mais detalhes sobre como deixar seu feedback?"

// GreetingMessage is the opening question, personalized when the customer is known.
func GreetingMessage(c *domain.Customer) string {
	name := ""
	if c != nil && strings.TrimSpace(c.FirstName) != "" {
		name = ", " + strings.TrimSpace(c.FirstName)
	}
	return fmt.Sprintf(greetingTemplate, name)
}

// ScoreReceivedMessage is the closing text used when no reply could be generated.
func ScoreReceivedMessage(score int) string {
	return fmt.Sprintf("Obrigado pela sua avaliação! Registramos sua nota %d/10.", score)
}

// FollowUpQuestion asks for the reason behind a bare rating.
func FollowUpQuestion(score int) string {
	switch domain.CategoryForScore(score) {
	case domain.CategoryDetractor:
		return "O que aconteceu que te deixou insatisfeito(a)?"
	case domain.CategoryNeutral:
		return "O que falta para sua experiência ser perfeita?"
	default:
		return "O que você mais gostou na nossa parceria?"
	}
}
