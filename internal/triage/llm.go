package triage

import (
	"context"

	"github.com/linnemanlabs/acuity/internal/retrieval"
)

// Generator is the interface for any language-model backend. Implementations
// own their timeout and retry policy; an error here means retries are
// exhausted or the failure was not retryable.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is one prompt to the model: a system instruction plus the
// conversation so far.
type GenerateRequest struct {
	System    string
	Messages  []PromptMessage
	MaxTokens int
}

// PromptMessage is a conversation entry as presented to the model.
type PromptMessage struct {
	Role    Role
	Content string
}

// GenerateResponse is the model's reply.
type GenerateResponse struct {
	Text  string
	Model string
	Usage Usage
}

// Usage is the token accounting for one provider call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Retriever supplies grounding context for a turn. A degraded retrieval
// returns an empty result, never an error: the turn proceeds ungrounded.
type Retriever interface {
	Retrieve(ctx context.Context, raw string, prior []string) *retrieval.Result
}

// Notifier receives finalized results that warrant care-team attention.
type Notifier interface {
	Send(ctx context.Context, sessionID string, res *Result) error
}
