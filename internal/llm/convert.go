package llm

import "github.com/attent-app/attent/internal/domain"

// ForCompletion converts conversation history to the completion API format.
// Debug messages and empty bookkeeping entries never reach the model.
func ForCompletion(history []domain.Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role == domain.RoleDebug {
			continue
		}
		if m.Content == "" && m.FunctionCall == nil {
			continue
		}
		msg := Message{Role: m.Role, Content: m.Content}
		if m.FunctionCall != nil {
			msg.FunctionCall = &FunctionCall{
				Name:      m.FunctionCall.Name,
				Arguments: m.FunctionCall.Arguments,
			}
		}
		out = append(out, msg)
	}
	return out
}
