package prompt

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/symposic/symposic/internal/genai"
	"github.com/symposic/symposic/internal/models"
)

// DefaultVersion is the prompt configuration version served when none is
// configured explicitly.
const DefaultVersion = "0.1.0"

// Placeholder tokens substituted during rendering. The interview-length
// token spelling matches the shipped prompt templates.
const (
	placeholderInterviewLength = "{{INTEVIEW_LENGTH}}"
	placeholderMessages        = "{{MESSAGES}}"
	placeholderName            = "{{name}}"
)

// Opts holds configuration options for the prompt registry.
type Opts struct {
	Dir     string // on-disk prompts directory overriding embedded defaults
	Version string // active prompt version
}

// Option defines a configuration option for the prompt registry.
type Option func(*Opts)

// WithDir sets an on-disk prompts directory.
func WithDir(dir string) Option {
	return func(o *Opts) { o.Dir = dir }
}

// WithVersion sets the active prompt version.
func WithVersion(version string) Option {
	return func(o *Opts) { o.Version = version }
}

// Registry loads and caches immutable prompt configurations keyed by
// version. Construct one at startup and inject it; there is no ambient
// global configuration.
type Registry struct {
	dir     string
	version string

	mu      sync.RWMutex
	configs map[string]*Config
}

// NewRegistry creates a registry and eagerly loads the active version so a
// missing or invalid configuration fails the process at startup instead of
// the first interview request.
func NewRegistry(opts ...Option) (*Registry, error) {
	cfg := Opts{Version: DefaultVersion}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}

	r := &Registry{
		dir:     cfg.Dir,
		version: cfg.Version,
		configs: make(map[string]*Config),
	}
	if _, err := r.Load(cfg.Version); err != nil {
		return nil, fmt.Errorf("failed to load active prompt version %s: %w", cfg.Version, err)
	}
	slog.Info("Registry.NewRegistry: prompt registry ready", "activeVersion", cfg.Version, "dir_set", cfg.Dir != "")
	return r, nil
}

// Load returns the configuration for a version, reading it at most once.
func (r *Registry) Load(version string) (*Config, error) {
	r.mu.RLock()
	if cfg, ok := r.configs[version]; ok {
		r.mu.RUnlock()
		return cfg, nil
	}
	r.mu.RUnlock()

	cfg, err := LoadConfig(r.dir, version)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A concurrent load may have won; keep the first record so every caller
	// sees the same immutable config.
	if existing, ok := r.configs[version]; ok {
		return existing, nil
	}
	r.configs[version] = cfg
	return cfg, nil
}

// Active returns the configuration for the active version.
func (r *Registry) Active() (*Config, error) {
	return r.Load(r.version)
}

// ActiveVersion returns the active prompt version string.
func (r *Registry) ActiveVersion() string {
	return r.version
}

// InitialMessage returns the configured initial greeting with the name
// placeholder substituted.
func (r *Registry) InitialMessage(name string) (string, error) {
	cfg, err := r.Active()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(cfg.Initial, placeholderName, name), nil
}

// Render builds the chat completion request for the current transcript.
//
// The transcript is passed through turn by turn, then a synthesized final
// user turn carries the rendered user-prompt template. That synthesized
// turn is never persisted as part of the interview. Tool choice is pinned
// to the first declared tool so the reply is always parseable.
func (r *Registry) Render(messages []models.InterviewMessage, name string) (genai.Request, error) {
	cfg, err := r.Active()
	if err != nil {
		return genai.Request{}, err
	}
	return RenderWithConfig(cfg, messages, name), nil
}

// RenderWithConfig is the pure rendering function behind Render. Identical
// inputs produce identical requests.
func RenderWithConfig(cfg *Config, messages []models.InterviewMessage, name string) genai.Request {
	interviewLength := len(messages)

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, string(msg.Role)+": "+msg.Content)
	}

	userPrompt := cfg.User
	userPrompt = strings.ReplaceAll(userPrompt, placeholderInterviewLength, strconv.Itoa(interviewLength))
	userPrompt = strings.ReplaceAll(userPrompt, placeholderMessages, strings.Join(lines, "\n"))
	userPrompt = strings.ReplaceAll(userPrompt, placeholderName, name)

	chatMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleAssistant:
			chatMessages = append(chatMessages, openai.AssistantMessage(msg.Content))
		default:
			chatMessages = append(chatMessages, openai.UserMessage(msg.Content))
		}
	}
	chatMessages = append(chatMessages, openai.UserMessage(userPrompt))

	tools := make([]openai.ChatCompletionToolParam, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		tools = append(tools, toolParam(t))
	}

	return genai.Request{
		Model:      cfg.Model,
		MaxTokens:  cfg.MaxTokens,
		System:     cfg.System,
		Messages:   chatMessages,
		Tools:      tools,
		ForcedTool: cfg.Tools[0].Name,
	}
}

// toolParam converts a configured tool declaration to the OpenAI tool format.
func toolParam(t ToolSpec) openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters: shared.FunctionParameters{
				"type":       t.InputSchema.Type,
				"properties": t.InputSchema.Properties,
				"required":   t.InputSchema.Required,
			},
		},
	}
}
