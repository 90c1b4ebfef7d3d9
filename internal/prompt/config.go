// Package prompt provides versioned prompt configuration and request
// rendering for the onboarding interview.
//
// Configurations are immutable once loaded: the registry reads a version at
// startup and hands the same record out for the life of the process.
package prompt

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// userPromptFileRef marks a user prompt stored next to config.json instead
// of inline. Resolved and inlined at load time.
const userPromptFileRef = "./user.txt"

//go:embed prompts
var embeddedPrompts embed.FS

// Error variables for configuration loading.
var (
	// ErrConfigNotFound indicates the requested prompt version is unknown.
	ErrConfigNotFound = fmt.Errorf("prompt config not found")
)

// Metadata describes a prompt configuration version.
type Metadata struct {
	Description string `json:"description"`
	Created     string `json:"created"`
}

// ToolSpec declares one tool the model may be asked to respond with.
type ToolSpec struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema ToolSchema `json:"input_schema"`
}

// ToolSchema is the JSON schema of a tool's arguments.
type ToolSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required"`
}

// Config is an immutable, versioned bundle of prompt templates and tool
// declarations. Model parameters live here so callers can never vary them
// per request.
type Config struct {
	Version  string     `json:"version"`
	Metadata Metadata   `json:"metadata"`
	System   string     `json:"system"`
	Initial  string     `json:"initial"`
	User     string     `json:"user"`
	Tools    []ToolSpec `json:"tools"`

	Model     string `json:"model"`
	MaxTokens int64  `json:"max_tokens"`
}

// Validate checks that a loaded configuration is complete enough to serve
// interview traffic.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("prompt config missing version")
	}
	if c.Initial == "" {
		return fmt.Errorf("prompt config %s missing initial message template", c.Version)
	}
	if c.User == "" {
		return fmt.Errorf("prompt config %s missing user prompt template", c.Version)
	}
	if len(c.Tools) == 0 {
		return fmt.Errorf("prompt config %s declares no tools", c.Version)
	}
	if c.Model == "" {
		return fmt.Errorf("prompt config %s missing model identifier", c.Version)
	}
	return nil
}

// LoadConfig reads the prompt configuration for the given version. An
// on-disk prompts directory takes precedence over the embedded defaults,
// which lets deployments iterate on prompt text without a rebuild.
func LoadConfig(dir, version string) (*Config, error) {
	configJSON, userTxt, err := readConfigFiles(dir, version)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		slog.Error("LoadConfig: failed to parse prompt config", "version", version, "error", err)
		return nil, fmt.Errorf("failed to parse prompt config %s: %w", version, err)
	}

	// Expand the user prompt if it's a file reference
	if cfg.User == userPromptFileRef {
		if userTxt == nil {
			slog.Error("LoadConfig: user prompt file reference missing", "version", version)
			return nil, fmt.Errorf("prompt config %s references %s but it was not found", version, userPromptFileRef)
		}
		cfg.User = string(userTxt)
	}
	cfg.User = strings.TrimRight(cfg.User, "\n")

	if err := cfg.Validate(); err != nil {
		slog.Error("LoadConfig: prompt config invalid", "version", version, "error", err)
		return nil, err
	}

	slog.Info("LoadConfig: prompt config loaded", "version", cfg.Version, "tools", len(cfg.Tools), "model", cfg.Model)
	return &cfg, nil
}

// readConfigFiles returns config.json and, if present, user.txt for the
// version. Prefers dir when set, falling back to the embedded copies.
func readConfigFiles(dir, version string) ([]byte, []byte, error) {
	if dir != "" {
		configPath := filepath.Join(dir, version, "config.json")
		if configJSON, err := os.ReadFile(configPath); err == nil {
			userTxt, _ := os.ReadFile(filepath.Join(dir, version, "user.txt"))
			slog.Debug("readConfigFiles: loaded prompt config from disk", "path", configPath)
			return configJSON, userTxt, nil
		}
	}

	configJSON, err := embeddedPrompts.ReadFile("prompts/" + version + "/config.json")
	if err != nil {
		slog.Debug("readConfigFiles: prompt version not found", "version", version, "error", err)
		return nil, nil, fmt.Errorf("%w: version %s", ErrConfigNotFound, version)
	}
	userTxt, _ := embeddedPrompts.ReadFile("prompts/" + version + "/user.txt")
	return configJSON, userTxt, nil
}
