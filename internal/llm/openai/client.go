// Package openai backs triage generation and retrieval embedding with the
// OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/linnemanlabs/acuity/internal/llm"
	"github.com/linnemanlabs/acuity/internal/triage"
)

const backend = "openai"

// Client calls the OpenAI API for chat completions and embeddings. It
// implements triage.Generator and retrieval.Embedder.
type Client struct {
	api        *goopenai.Client
	chatModel  string
	embedModel string
}

// New creates a client for the given models.
func New(apiKey, chatModel, embedModel string) *Client {
	return &Client{
		api:        goopenai.NewClient(apiKey),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

// Generate sends the conversation to the chat completion API.
func (c *Client) Generate(ctx context.Context, req *triage.GenerateRequest) (*triage.GenerateResponse, error) {
	msgs := toChatMessages(req.System, req.Messages)

	return llm.Do(ctx, func(ctx context.Context) (*triage.GenerateResponse, error) {
		resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model:       c.chatModel,
			Messages:    msgs,
			MaxTokens:   req.MaxTokens,
			Temperature: 0,
		})
		if err != nil {
			return nil, classify(err)
		}
		if len(resp.Choices) == 0 {
			return nil, llm.Classify(backend, 0, errors.New("empty choices in completion response"))
		}
		return &triage.GenerateResponse{
			Text:  resp.Choices[0].Message.Content,
			Model: resp.Model,
			Usage: triage.Usage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
			},
		}, nil
	})
}

// Embed converts texts to vectors with the embeddings API. Output order
// matches input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return llm.Do(ctx, func(ctx context.Context) ([][]float32, error) {
		resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Model: goopenai.EmbeddingModel(c.embedModel),
			Input: texts,
		})
		if err != nil {
			return nil, classify(err)
		}
		if len(resp.Data) != len(texts) {
			return nil, llm.Classify(backend, 0,
				fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts)))
		}
		out := make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(out) {
				return nil, llm.Classify(backend, 0, fmt.Errorf("embedding index %d out of range", d.Index))
			}
			out[d.Index] = d.Embedding
		}
		return out, nil
	})
}

// toChatMessages renders the system prompt as the leading system message
// followed by the conversation turns.
func toChatMessages(system string, msgs []triage.PromptMessage) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range msgs {
		role := goopenai.ChatMessageRoleUser
		if m.Role == triage.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return llm.Classify(backend, apiErr.HTTPStatusCode, err)
	}
	return llm.Classify(backend, 0, err)
}
