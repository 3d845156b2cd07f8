package llm

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Budgeter trims conversation history to a model token budget before a
// completion call. The leading system message is always retained; older
// messages are evicted first.
type Budgeter struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// NewBudgeter creates a budgeter for the given model. maxTokens is the input
// budget, not the model's full context window.
func NewBudgeter(model string, maxTokens int) (*Budgeter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models.
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Budgeter{tokenizer: enc, maxTokens: maxTokens}, nil
}

func (b *Budgeter) countTokens(msg Message) int {
	n := len(b.tokenizer.Encode(msg.Content, nil, nil))
	if msg.FunctionCall != nil {
		n += len(b.tokenizer.Encode(msg.FunctionCall.Name, nil, nil))
		n += len(b.tokenizer.Encode(msg.FunctionCall.Arguments, nil, nil))
	}
	return n
}

// Trim returns the longest suffix of messages that fits the budget, with the
// leading system message prepended when one exists.
func (b *Budgeter) Trim(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}

	var system *Message
	rest := messages
	if messages[0].Role == "system" {
		system = &messages[0]
		rest = messages[1:]
	}

	budget := b.maxTokens
	if system != nil {
		budget -= b.countTokens(*system)
	}

	used := 0
	start := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		cost := b.countTokens(rest[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	trimmed := make([]Message, 0, 1+len(rest)-start)
	if system != nil {
		trimmed = append(trimmed, *system)
	}
	return append(trimmed, rest[start:]...)
}
