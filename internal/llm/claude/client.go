// Package claude backs triage generation with the Anthropic API.
package claude

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/acuity/internal/llm"
	"github.com/linnemanlabs/acuity/internal/triage"
)

const backend = "claude"

// Client calls the Anthropic Messages API. It implements triage.Generator.
type Client struct {
	api   anthropic.Client
	model string
}

// New creates a client for the given model.
func New(apiKey, model string) *Client {
	return &Client{
		api:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: model,
	}
}

// Generate sends the conversation to the Messages API and returns the
// concatenated text blocks of the reply.
func (c *Client) Generate(ctx context.Context, req *triage.GenerateRequest) (*triage.GenerateResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  toSDKMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	return llm.Do(ctx, func(ctx context.Context) (*triage.GenerateResponse, error) {
		msg, err := c.api.Messages.New(ctx, params)
		if err != nil {
			return nil, classify(err)
		}

		var sb strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		return &triage.GenerateResponse{
			Text:  sb.String(),
			Model: string(msg.Model),
			Usage: triage.Usage{
				InputTokens:  int(msg.Usage.InputTokens),
				OutputTokens: int(msg.Usage.OutputTokens),
			},
		}, nil
	})
}

// toSDKMessages converts prompt messages to SDK params. Anything that is not
// an assistant turn travels in the user role; the system prompt goes in the
// dedicated params field.
func toSDKMessages(msgs []triage.PromptMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == triage.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llm.Classify(backend, apiErr.StatusCode, err)
	}
	return llm.Classify(backend, 0, err)
}
