// Package llm defines the completion service abstraction used for assistant
// replies and trigger evaluation.
package llm

import (
	"context"
	"iter"
)

// Provider defines the interface for interacting with a completion backend.
// Implementations handle protocol-specific details such as request
// formatting, authentication, and response parsing.
type Provider interface {
	// Complete sends a chat completion request and returns the full response
	// message.
	Complete(ctx context.Context, messages []Message) (*Message, error)

	// Stream sends a chat completion request and yields incremental deltas.
	// Iteration ends on stream completion or on the first error.
	Stream(ctx context.Context, messages []Message) iter.Seq2[Delta, error]
}

// Config holds common configuration for completion providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}
