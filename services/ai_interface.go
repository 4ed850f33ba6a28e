package services

import (
	"context"
	"time"
)

// CompletionRequest is a single system + user exchange with a chat model
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
	// JSON asks the model for a bare JSON object
	JSON bool
}

// Completion is the model's reply and its token cost
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// AIProvider is a chat-completion backend the clarifier can talk to
type AIProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	GetProviderName() string
	GetModelName() string
}
