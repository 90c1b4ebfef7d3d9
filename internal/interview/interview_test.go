package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/symposic/symposic/internal/genai"
	"github.com/symposic/symposic/internal/models"
	"github.com/symposic/symposic/internal/prompt"
)

// mockGenAIClient returns canned replies and records calls.
type mockGenAIClient struct {
	reply   genai.Reply
	err     error
	calls   int
	lastReq genai.Request
}

func (m *mockGenAIClient) Generate(ctx context.Context, req genai.Request) (genai.Reply, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

func toolReply(t *testing.T, nextMessage string, isComplete bool, progress float64) genai.ToolReply {
	t.Helper()
	args, err := json.Marshal(models.InterviewResponseParams{
		NextMessage:       nextMessage,
		IsComplete:        isComplete,
		EstimatedProgress: progress,
	})
	if err != nil {
		t.Fatalf("failed to marshal tool arguments: %v", err)
	}
	return genai.ToolReply{ID: "call-1", Name: models.InterviewToolName, Arguments: args}
}

func newTestRegistry(t *testing.T) *prompt.Registry {
	t.Helper()
	reg, err := prompt.NewRegistry()
	if err != nil {
		t.Fatalf("failed to create prompt registry: %v", err)
	}
	return reg
}

func TestStartSubstitutesName(t *testing.T) {
	o := NewOrchestrator(newTestRegistry(t), &mockGenAIClient{})
	iv, err := o.Start(context.Background(), "Ada")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(iv.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(iv.Messages))
	}
	first := iv.Messages[0]
	if first.Role != models.RoleAssistant {
		t.Errorf("expected assistant role, got %s", first.Role)
	}
	if !strings.Contains(first.Content, "Ada") {
		t.Errorf("greeting should contain the name: %q", first.Content)
	}
	if strings.Contains(first.Content, "{{") {
		t.Errorf("greeting contains unexpanded placeholder: %q", first.Content)
	}
	if iv.PromptVersion != prompt.DefaultVersion {
		t.Errorf("expected prompt version %s, got %s", prompt.DefaultVersion, iv.PromptVersion)
	}
	if iv.IsFinished() {
		t.Error("new interview should not be finished")
	}
}

func TestStartEmptyName(t *testing.T) {
	o := NewOrchestrator(newTestRegistry(t), &mockGenAIClient{})
	if _, err := o.Start(context.Background(), ""); !errors.Is(err, models.ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestAdvanceToolReply(t *testing.T) {
	mock := &mockGenAIClient{reply: toolReply(t, "What do you build?", false, 25)}
	o := NewOrchestrator(newTestRegistry(t), mock)

	iv, err := o.Start(context.Background(), "Ada")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	next, isComplete, err := o.Advance(context.Background(), *iv, "I work on compilers.")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if isComplete {
		t.Error("expected interview not complete")
	}
	if mock.calls != 1 {
		t.Errorf("expected 1 model call, got %d", mock.calls)
	}
	if len(next.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(next.Messages))
	}
	if next.Messages[1].Role != models.RoleUser || next.Messages[1].Content != "I work on compilers." {
		t.Errorf("unexpected user message: %+v", next.Messages[1])
	}
	if next.Messages[2].Role != models.RoleAssistant || next.Messages[2].Content != "What do you build?" {
		t.Errorf("unexpected assistant message: %+v", next.Messages[2])
	}
	// Original transcript untouched
	if len(iv.Messages) != 1 {
		t.Errorf("input interview was mutated: %d messages", len(iv.Messages))
	}
}

func TestAdvanceToolReplySignalsComplete(t *testing.T) {
	mock := &mockGenAIClient{reply: toolReply(t, "Thanks, that's everything I need!", true, 100)}
	o := NewOrchestrator(newTestRegistry(t), mock)

	iv, _ := o.Start(context.Background(), "Ada")
	_, isComplete, err := o.Advance(context.Background(), *iv, "That's my story.")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if !isComplete {
		t.Error("expected completion signal from tool reply")
	}
}

func TestAdvanceTextFallback(t *testing.T) {
	mock := &mockGenAIClient{reply: genai.TextReply{Text: "Interesting, tell me more."}}
	o := NewOrchestrator(newTestRegistry(t), mock)

	iv, _ := o.Start(context.Background(), "Ada")
	next, isComplete, err := o.Advance(context.Background(), *iv, "I like hiking.")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if isComplete {
		t.Error("free-text fallback must never signal completion")
	}
	last := next.Messages[len(next.Messages)-1]
	if last.Role != models.RoleAssistant || last.Content != "Interesting, tell me more." {
		t.Errorf("unexpected fallback message: %+v", last)
	}
}

func TestAdvanceUpstreamError(t *testing.T) {
	mock := &mockGenAIClient{err: fmt.Errorf("connection refused")}
	o := NewOrchestrator(newTestRegistry(t), mock)

	iv, _ := o.Start(context.Background(), "Ada")
	next, isComplete, err := o.Advance(context.Background(), *iv, "Hello?")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if isComplete {
		t.Error("failed advance must not signal completion")
	}
	// The user message is carried but no assistant message is added.
	if len(next.Messages) != 2 {
		t.Fatalf("expected 2 messages after failed call, got %d", len(next.Messages))
	}
	if next.Messages[1].Role != models.RoleUser {
		t.Errorf("expected trailing user message, got %+v", next.Messages[1])
	}
}

func TestAdvanceMalformedResponse(t *testing.T) {
	mock := &mockGenAIClient{err: genai.ErrNoChoices}
	o := NewOrchestrator(newTestRegistry(t), mock)

	iv, _ := o.Start(context.Background(), "Ada")
	if _, _, err := o.Advance(context.Background(), *iv, "Hello?"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestAdvanceBadToolArguments(t *testing.T) {
	mock := &mockGenAIClient{reply: genai.ToolReply{
		ID:        "call-1",
		Name:      models.InterviewToolName,
		Arguments: json.RawMessage(`{"isComplete": true}`),
	}}
	o := NewOrchestrator(newTestRegistry(t), mock)

	iv, _ := o.Start(context.Background(), "Ada")
	if _, _, err := o.Advance(context.Background(), *iv, "Hi"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse for missing nextMessage, got %v", err)
	}
}

func TestAdvanceCeilingForcesCompletion(t *testing.T) {
	mock := &mockGenAIClient{reply: toolReply(t, "should not be called", false, 50)}
	o := NewOrchestrator(newTestRegistry(t), mock, WithMaxAssistantMessages(1))

	iv, _ := o.Start(context.Background(), "Ada")
	next, isComplete, err := o.Advance(context.Background(), *iv, "First answer.")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if !isComplete {
		t.Error("ceiling must force completion")
	}
	if mock.calls != 0 {
		t.Errorf("model must not be called at the ceiling, got %d calls", mock.calls)
	}
	last := next.Messages[len(next.Messages)-1]
	if last.Role != models.RoleAssistant || last.Content != closingMessage {
		t.Errorf("expected canned closing message, got %+v", last)
	}
}

func TestAdvanceOnFinishedInterview(t *testing.T) {
	mock := &mockGenAIClient{reply: toolReply(t, "more", false, 50)}
	o := NewOrchestrator(newTestRegistry(t), mock)

	iv, _ := o.Start(context.Background(), "Ada")
	done := iv.Clone()
	finished := done.CreatedAt
	done.FinishedAt = &finished

	_, isComplete, err := o.Advance(context.Background(), done, "One more thing...")
	if !errors.Is(err, ErrInterviewComplete) {
		t.Fatalf("expected ErrInterviewComplete, got %v", err)
	}
	if !isComplete {
		t.Error("finished interview should report complete")
	}
	if mock.calls != 0 {
		t.Errorf("model must not be called on a finished interview, got %d calls", mock.calls)
	}
}

func TestAdvanceInvalidUserMessage(t *testing.T) {
	o := NewOrchestrator(newTestRegistry(t), &mockGenAIClient{})
	iv, _ := o.Start(context.Background(), "Ada")

	if _, _, err := o.Advance(context.Background(), *iv, ""); !errors.Is(err, models.ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	long := strings.Repeat("x", models.MaxMessageContentLength+1)
	if _, _, err := o.Advance(context.Background(), *iv, long); !errors.Is(err, models.ErrMessageTooLong) {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestAdvanceSendsForcedTool(t *testing.T) {
	mock := &mockGenAIClient{reply: toolReply(t, "next", false, 10)}
	o := NewOrchestrator(newTestRegistry(t), mock)

	iv, _ := o.Start(context.Background(), "Ada")
	if _, _, err := o.Advance(context.Background(), *iv, "Hi there"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if mock.lastReq.ForcedTool != models.InterviewToolName {
		t.Errorf("expected forced tool %s, got %s", models.InterviewToolName, mock.lastReq.ForcedTool)
	}
	if len(mock.lastReq.Tools) == 0 {
		t.Error("expected tools in rendered request")
	}
	if mock.lastReq.System == "" {
		t.Error("expected system prompt in rendered request")
	}
}
