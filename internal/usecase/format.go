package usecase

import (
	"fmt"

	"hint-agent/internal/domain"
)

const defaultMaxHistory = 20

// OutputFormatter renders the final hint and is the only writer of chat history.
type OutputFormatter struct {
	maxHistory int
}

func NewOutputFormatter(maxHistory int) OutputFormatter {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return OutputFormatter{maxHistory: maxHistory}
}

// Format returns the rendered text and a new history slice holding at most
// maxHistory of the most recent messages. The input slice is not modified.
func (f OutputFormatter) Format(hint string, hintLevel int, question string, history []domain.ChatMessage) (string, []domain.ChatMessage) {
	text := fmt.Sprintf("Hint (Level %d): %s", hintLevel, hint)

	next := make([]domain.ChatMessage, 0, len(history)+2)
	next = append(next, history...)
	next = append(next,
		domain.ChatMessage{Role: domain.RoleUser, Content: question},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: text},
	)
	if len(next) > f.maxHistory {
		next = append([]domain.ChatMessage(nil), next[len(next)-f.maxHistory:]...)
	}
	return text, next
}
