// Package interview implements the onboarding interview orchestrator.
//
// The orchestrator owns the conversation logic only: it merges the user's
// message into the transcript, decides whether to call the model or force
// completion at the turn ceiling, and interprets the structured reply. It is
// stateless between calls; persistence and completion stamping belong to the
// caller.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/symposic/symposic/internal/genai"
	"github.com/symposic/symposic/internal/models"
	"github.com/symposic/symposic/internal/prompt"
)

// DefaultMaxAssistantMessages is the hard ceiling on assistant-authored
// messages, including the initial greeting. The conversation terminates at
// the ceiling even if the model never signals completion.
const DefaultMaxAssistantMessages = 12

// closingMessage is appended when the turn ceiling forces completion.
const closingMessage = "Perfect - based on everything you've shared, I'll start looking for a group that matches your vibe and interests. You'll get a text from me when I've found the right networking opportunity for you. Thanks for sharing your story!"

// Error variables for orchestration failures.
var (
	// ErrNoPromptConfig indicates no prompt configuration is available.
	ErrNoPromptConfig = errors.New("prompt config not loaded")
	// ErrUpstream indicates the model provider was unreachable or errored.
	// The transcript is not mutated past the user's message; callers may
	// retry with the same input.
	ErrUpstream = errors.New("interview model call failed")
	// ErrMalformedResponse indicates the provider returned a structure that
	// is neither a parseable tool call nor plain text.
	ErrMalformedResponse = errors.New("malformed interview model response")
	// ErrInterviewComplete indicates Advance was called on a finished
	// interview. Complete is terminal.
	ErrInterviewComplete = errors.New("interview already complete")
)

// Opts holds configuration options for the orchestrator.
type Opts struct {
	MaxAssistantMessages int
}

// Option defines a configuration option for the orchestrator.
type Option func(*Opts)

// WithMaxAssistantMessages overrides the turn ceiling.
func WithMaxAssistantMessages(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.MaxAssistantMessages = n
		}
	}
}

// Orchestrator drives the bounded multi-turn onboarding interview. All
// collaborators are injected at construction time and never swapped after.
type Orchestrator struct {
	registry             *prompt.Registry
	genaiClient          genai.ClientInterface
	maxAssistantMessages int
}

// NewOrchestrator creates an interview orchestrator.
func NewOrchestrator(registry *prompt.Registry, genaiClient genai.ClientInterface, opts ...Option) *Orchestrator {
	cfg := Opts{MaxAssistantMessages: DefaultMaxAssistantMessages}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Orchestrator.NewOrchestrator: creating orchestrator",
		"hasRegistry", registry != nil,
		"hasGenAI", genaiClient != nil,
		"maxAssistantMessages", cfg.MaxAssistantMessages)
	return &Orchestrator{
		registry:             registry,
		genaiClient:          genaiClient,
		maxAssistantMessages: cfg.MaxAssistantMessages,
	}
}

// Start constructs a new interview: a single assistant message rendered from
// the initial-message template with the participant's name substituted.
func (o *Orchestrator) Start(ctx context.Context, name string) (*models.Interview, error) {
	if name == "" {
		return nil, models.ErrEmptyName
	}
	if o.registry == nil {
		slog.Error("Orchestrator.Start: prompt registry not configured")
		return nil, ErrNoPromptConfig
	}

	initial, err := o.registry.InitialMessage(name)
	if err != nil {
		slog.Error("Orchestrator.Start: failed to render initial message", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNoPromptConfig, err)
	}

	iv := &models.Interview{
		CreatedAt:     time.Now().UTC(),
		PromptVersion: o.registry.ActiveVersion(),
		Messages: []models.InterviewMessage{
			{Role: models.RoleAssistant, Content: initial},
		},
	}
	slog.Info("Orchestrator.Start: interview started", "promptVersion", iv.PromptVersion)
	return iv, nil
}

// Advance appends the user's message and produces the next interview state
// plus a completion flag.
//
// On any error the returned interview carries at most the newly appended
// user message; no assistant message is ever added on a failed model call,
// and the caller is expected not to persist it.
func (o *Orchestrator) Advance(ctx context.Context, iv models.Interview, userMessage string) (models.Interview, bool, error) {
	if iv.IsFinished() {
		slog.Warn("Orchestrator.Advance: called on finished interview")
		return iv, true, ErrInterviewComplete
	}

	userMsg := models.InterviewMessage{Role: models.RoleUser, Content: userMessage}
	if err := userMsg.Validate(); err != nil {
		return iv, false, err
	}
	if err := models.ValidateMessages(iv.Messages); err != nil {
		return iv, false, err
	}

	next := iv.Clone()
	next.Messages = append(next.Messages, userMsg)

	// Turn ceiling: terminate without calling the model.
	if next.AssistantMessageCount() >= o.maxAssistantMessages {
		slog.Info("Orchestrator.Advance: turn ceiling reached, forcing completion",
			"assistantMessages", next.AssistantMessageCount(), "ceiling", o.maxAssistantMessages)
		next.Messages = append(next.Messages, models.InterviewMessage{
			Role:    models.RoleAssistant,
			Content: closingMessage,
		})
		return next, true, nil
	}

	if o.genaiClient == nil {
		slog.Error("Orchestrator.Advance: genai client not configured")
		return next, false, ErrNoPromptConfig
	}

	req, err := o.registry.Render(next.Messages, "")
	if err != nil {
		slog.Error("Orchestrator.Advance: failed to render prompt", "error", err)
		return next, false, fmt.Errorf("%w: %v", ErrNoPromptConfig, err)
	}

	reply, err := o.genaiClient.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, genai.ErrMalformedResponse) || errors.Is(err, genai.ErrNoChoices) {
			slog.Error("Orchestrator.Advance: unparseable model response", "error", err)
			return next, false, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		slog.Error("Orchestrator.Advance: model call failed", "error", err)
		return next, false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	switch r := reply.(type) {
	case genai.ToolReply:
		params, perr := models.ParseInterviewResponseParams(r.Name, r.Arguments)
		if perr != nil {
			slog.Error("Orchestrator.Advance: failed to parse tool call", "tool", r.Name, "error", perr)
			return next, false, fmt.Errorf("%w: %v", ErrMalformedResponse, perr)
		}
		next.Messages = append(next.Messages, models.InterviewMessage{
			Role:    models.RoleAssistant,
			Content: params.NextMessage,
		})
		slog.Debug("Orchestrator.Advance: structured reply appended",
			"isComplete", params.IsComplete, "estimatedProgress", params.EstimatedProgress)
		return next, params.IsComplete, nil
	case genai.TextReply:
		// Structured signal absent: conservatively treat as not done.
		next.Messages = append(next.Messages, models.InterviewMessage{
			Role:    models.RoleAssistant,
			Content: r.Text,
		})
		slog.Debug("Orchestrator.Advance: free-text fallback reply appended", "length", len(r.Text))
		return next, false, nil
	default:
		slog.Error("Orchestrator.Advance: unknown reply shape", "reply", fmt.Sprintf("%T", reply))
		return next, false, ErrMalformedResponse
	}
}

// MaxAssistantMessages returns the configured turn ceiling.
func (o *Orchestrator) MaxAssistantMessages() int {
	return o.maxAssistantMessages
}
