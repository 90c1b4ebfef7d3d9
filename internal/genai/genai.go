// Package genai wraps the OpenAI chat completion API for the onboarding interview.
//
// The interview relies on structured tool-call output, so the client pins the
// tool choice when asked to and returns a tagged Reply that callers must
// handle arm by arm.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Error variables for response interpretation.
var (
	// ErrNoChoices indicates the provider returned an empty choice list.
	ErrNoChoices = fmt.Errorf("no choices returned")
	// ErrMalformedResponse indicates the provider response carried neither a
	// tool call nor plain text.
	ErrMalformedResponse = fmt.Errorf("malformed completion response")
)

// Request is a fully rendered chat completion request. Model parameters come
// from prompt configuration, never from caller input.
type Request struct {
	Model      string
	MaxTokens  int64
	System     string
	Messages   []openai.ChatCompletionMessageParamUnion
	Tools      []openai.ChatCompletionToolParam
	ForcedTool string // when set, tool choice is pinned to this tool name
}

// Reply is the result of a completion call. It has exactly two arms:
// ToolReply for structured tool-call output and TextReply for the free-text
// fallback path.
type Reply interface {
	isReply()
}

// ToolReply carries the structured tool invocation returned by the model.
type ToolReply struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

func (ToolReply) isReply() {}

// TextReply carries plain free-text output when no tool call was returned.
type TextReply struct {
	Text string
}

func (TextReply) isReply() {}

// ClientInterface defines the operations the interview orchestrator needs.
// Tests substitute mock implementations.
type ClientInterface interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client openai.Client
}

// NewClient initializes a new GenAI client. Falls back to the OPENAI_API_KEY
// environment variable when no key option is provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	slog.Debug("GenAI client config loaded", "APIKey_set", cfg.APIKey != "")
	return &Client{client: openai.NewClient(option.WithAPIKey(cfg.APIKey))}, nil
}

// Generate executes a chat completion and interprets the result as a Reply.
// Context cancellation propagates to the outbound call.
func (c *Client) Generate(ctx context.Context, req Request) (Reply, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: buildMessages(req),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		params.Tools = req.Tools
	}
	if req.ForcedTool != "" {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: req.ForcedTool},
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		slog.Error("GenAI Generate failed", "error", err, "model", req.Model)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI Generate returned no choices", "model", req.Model)
		return nil, ErrNoChoices
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		slog.Debug("GenAI Generate returned tool call", "tool", tc.Function.Name)
		return ToolReply{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		}, nil
	}
	if msg.Content != "" {
		slog.Debug("GenAI Generate returned text", "length", len(msg.Content))
		return TextReply{Text: msg.Content}, nil
	}
	slog.Error("GenAI Generate response had neither tool call nor text", "model", req.Model)
	return nil, ErrMalformedResponse
}

// buildMessages prepends the system prompt, if any, to the rendered transcript.
func buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	return append(messages, req.Messages...)
}
