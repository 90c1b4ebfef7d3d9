package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/symposic/symposic/internal/models"
)

func TestLoadEmbeddedDefaultVersion(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	cfg, err := reg.Active()
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if cfg.Version != DefaultVersion {
		t.Errorf("expected version %s, got %s", DefaultVersion, cfg.Version)
	}
	if cfg.Model == "" || cfg.System == "" || cfg.User == "" {
		t.Errorf("embedded config incomplete: %+v", cfg)
	}
	if len(cfg.Tools) == 0 {
		t.Fatal("embedded config declares no tools")
	}
	if cfg.Tools[0].Name != models.InterviewToolName {
		t.Errorf("expected first tool %s, got %s", models.InterviewToolName, cfg.Tools[0].Name)
	}
	if cfg.User == userPromptFileRef {
		t.Error("user prompt file reference was not inlined")
	}
}

func TestLoadIsCachedAndStable(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	a, err := reg.Load(DefaultVersion)
	if err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	b, err := reg.Load(DefaultVersion)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if a != b {
		t.Error("repeated loads must return the same config record")
	}
}

func TestLoadUnknownVersion(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if _, err := reg.Load("9.9.9"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestNewRegistryUnknownVersionFails(t *testing.T) {
	if _, err := NewRegistry(WithVersion("9.9.9")); err == nil {
		t.Error("expected startup failure for unknown active version")
	}
}

func TestInitialMessage(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	msg, err := reg.InitialMessage("Grace")
	if err != nil {
		t.Fatalf("InitialMessage failed: %v", err)
	}
	if !strings.Contains(msg, "Grace") {
		t.Errorf("initial message should contain the name: %q", msg)
	}
	if strings.Contains(msg, placeholderName) {
		t.Errorf("initial message contains unexpanded placeholder: %q", msg)
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	cfg, err := reg.Active()
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}

	transcript := []models.InterviewMessage{
		{Role: models.RoleAssistant, Content: "Hey Grace! Ready?"},
		{Role: models.RoleUser, Content: "Sure, let's go."},
	}
	req := RenderWithConfig(cfg, transcript, "Grace")

	if req.Model != cfg.Model {
		t.Errorf("expected model %s, got %s", cfg.Model, req.Model)
	}
	if req.System != cfg.System {
		t.Error("system prompt not carried into request")
	}
	if req.ForcedTool != cfg.Tools[0].Name {
		t.Errorf("expected forced tool %s, got %s", cfg.Tools[0].Name, req.ForcedTool)
	}
	if len(req.Tools) != len(cfg.Tools) {
		t.Errorf("expected %d tools, got %d", len(cfg.Tools), len(req.Tools))
	}
	// Transcript turns plus the synthesized final user turn.
	if len(req.Messages) != len(transcript)+1 {
		t.Fatalf("expected %d messages, got %d", len(transcript)+1, len(req.Messages))
	}

	final := req.Messages[len(req.Messages)-1]
	if final.OfUser == nil {
		t.Fatal("synthesized final turn must be a user message")
	}
	rendered := final.OfUser.Content.OfString.Value
	if strings.Contains(rendered, placeholderInterviewLength) ||
		strings.Contains(rendered, placeholderMessages) {
		t.Errorf("rendered user prompt contains unexpanded placeholders: %q", rendered)
	}
	if !strings.Contains(rendered, "2") {
		t.Errorf("rendered user prompt should carry the transcript length: %q", rendered)
	}
	if !strings.Contains(rendered, "assistant: Hey Grace! Ready?") ||
		!strings.Contains(rendered, "user: Sure, let's go.") {
		t.Errorf("rendered user prompt should carry role-prefixed transcript lines: %q", rendered)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	transcript := []models.InterviewMessage{
		{Role: models.RoleAssistant, Content: "Hello"},
		{Role: models.RoleUser, Content: "Hi"},
	}

	a, err := reg.Render(transcript, "Grace")
	if err != nil {
		t.Fatalf("first Render failed: %v", err)
	}
	b, err := reg.Render(transcript, "Grace")
	if err != nil {
		t.Fatalf("second Render failed: %v", err)
	}

	aFinal := a.Messages[len(a.Messages)-1].OfUser.Content.OfString.Value
	bFinal := b.Messages[len(b.Messages)-1].OfUser.Content.OfString.Value
	if aFinal != bFinal {
		t.Error("identical inputs must render identical requests")
	}
	if len(transcript) != 2 {
		t.Error("rendering must not mutate the transcript")
	}
}
