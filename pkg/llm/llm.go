// Package llm defines the completion provider interface used by minutes
// generation. Implementations handle protocol-specific details such as
// request formatting, authentication, and response parsing.
package llm

import "context"

// Message is one chat message in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is a full completion response.
type Response struct {
	Content string
	Usage   Usage
}

// Provider sends completion requests to an LLM backend.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (*Response, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}
