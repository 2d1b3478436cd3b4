// Package llm defines the contract between the agent loop and a language model.
package llm

import (
	"context"

	"github.com/joss/taskagent/internal/domain"
)

// Provider is the interface all LLM providers must implement
type Provider interface {
	ID() string

	// Chat sends messages and returns a streaming response
	Chat(ctx context.Context, req *ChatRequest) (<-chan domain.StreamEvent, error)
}

// ChatRequest represents a request to the LLM
type ChatRequest struct {
	Model        string
	Messages     []domain.Message
	Tools        []domain.Tool
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	// NextStepPrompt is sent after the conversation as a trailing user instruction
	NextStepPrompt string
	// DisableTools asks the provider not to offer tools even if Tools is set
	DisableTools bool
}
