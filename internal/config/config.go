// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// ModelConfig defines a model with its description.
type ModelConfig struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
}

// Config holds the application configuration.
type Config struct {
	DefaultModel string        `json:"default_model" yaml:"default_model"`
	Models       []ModelConfig `json:"models" yaml:"models"`
	Server       ServerConfig  `json:"server" yaml:"server"`
	Runner       RunnerConfig  `json:"runner" yaml:"runner"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// RunnerConfig holds run execution configuration.
type RunnerConfig struct {
	// DefaultTool selects the tool used when a request names none
	// (codex or claude).
	DefaultTool string `json:"default_tool" yaml:"default_tool"`
	// LoginShell is the shell used for login-shell fallbacks; empty selects
	// $SHELL, then /bin/sh.
	LoginShell string `json:"login_shell" yaml:"login_shell"`
	// InputStrategy is argv or stdin. Argv passes the prompt as a trailing
	// argument; stdin avoids command-line length ceilings.
	InputStrategy string `json:"input_strategy" yaml:"input_strategy"`
	// RunTimeout is an optional wall-clock limit per run as a duration
	// string; empty or "0" disables it.
	RunTimeout string `json:"run_timeout" yaml:"run_timeout"`
	// RejectDuplicateRuns refuses a run whose id is still live instead of
	// silently overwriting the registry entry.
	RejectDuplicateRuns bool `json:"reject_duplicate_runs" yaml:"reject_duplicate_runs"`
	// ToolBins maps tool names to explicit binary paths.
	ToolBins map[string]string `json:"tool_bins" yaml:"tool_bins"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultModel: "",
		Models: []ModelConfig{
			{ID: "gpt-5.1-codex", Description: "Optimized for code generation and refactoring"},
			{ID: "gpt-5.1-codex-mini", Description: "Lightweight coding model for quick tasks"},
			{ID: "gpt-5.1", Description: "Stable GPT model for production use"},
			{ID: "claude-sonnet-4.5", Description: "Balanced performance and speed for general tasks"},
			{ID: "claude-opus-4.5", Description: "Highest capability for complex reasoning and analysis"},
			{ID: "claude-haiku-4.5", Description: "Fast responses for simple tasks and quick iterations"},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8677,
		},
		Runner: RunnerConfig{
			DefaultTool:   "codex",
			InputStrategy: "argv",
		},
	}
}

// Load loads configuration from a file (supports JSON and YAML).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		home, _ := os.UserHomeDir()
		// Try YAML first, then JSON
		yamlPath := filepath.Join(home, ".hueste", "config.yaml")
		jsonPath := filepath.Join(home, ".hueste", "config.json")

		if _, err := os.Stat(yamlPath); err == nil {
			path = yamlPath
		} else if _, err := os.Stat(jsonPath); err == nil {
			path = jsonPath
		} else {
			// No config file found, return defaults
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Detect format by extension
	isYAML := strings.HasSuffix(strings.ToLower(path), ".yaml") || strings.HasSuffix(strings.ToLower(path), ".yml")

	if isYAML {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	// Tool binary overrides may use ~ paths.
	for tool, bin := range cfg.Runner.ToolBins {
		cfg.Runner.ToolBins[tool] = expandHome(bin)
	}

	return cfg, nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".hueste", "config.json")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetModelByID returns a model configuration by ID.
func (c *Config) GetModelByID(id string) *ModelConfig {
	for _, m := range c.Models {
		if m.ID == id {
			return &m
		}
	}
	return nil
}

// ValidateModel checks if a model ID is valid.
func (c *Config) ValidateModel(id string) bool {
	return c.GetModelByID(id) != nil
}

// expandHome expands ~ to home directory in paths.
func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	// Support "~/..." (and Windows separators just in case)
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~\\") {
		home, _ := os.UserHomeDir()
		rest := path[2:]
		return filepath.Join(home, rest)
	}
	// We intentionally don't expand "~user/..." forms.
	return path
}
