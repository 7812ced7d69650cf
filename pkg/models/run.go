// Package models defines the core domain types for the hueste orchestrator.
package models

import (
	"time"
)

// Tool identifies one of the supported external CLI tools.
type Tool string

const (
	// ToolCodex uses the OpenAI Codex CLI (default).
	ToolCodex Tool = "codex"
	// ToolClaude uses the Anthropic Claude CLI.
	ToolClaude Tool = "claude"
)

// ValidTool checks if a tool is valid.
func ValidTool(t Tool) bool {
	return t == ToolCodex || t == ToolClaude || t == ""
}

// DefaultTool returns the default tool.
func DefaultTool() Tool {
	return ToolCodex
}

// Mode selects between a normal execution run and an interactive login flow.
type Mode string

const (
	ModeExec  Mode = "exec"
	ModeLogin Mode = "login"
)

// Run represents a single invocation of an external CLI tool. The ID is a
// caller-supplied opaque string; its uniqueness is the caller's
// responsibility.
type Run struct {
	ID      string            `json:"id"`
	Tool    Tool              `json:"tool"`
	Prompt  string            `json:"prompt"`
	WorkDir string            `json:"work_dir,omitempty"`
	Model   string            `json:"model,omitempty"`
	Config  map[string]string `json:"config,omitempty"`
	Mode    Mode              `json:"mode,omitempty"`
	Timeout Duration          `json:"timeout,omitempty"`
}

// StreamEvent is an incremental chunk of a run's cleaned standard output.
// Events are per-run FIFO and line-chunked.
type StreamEvent struct {
	RunID   string `json:"runId"`
	Channel string `json:"channel"`
	Data    string `json:"data"`
}

// CompletionEvent is the single terminal outcome notification for a run.
// Output carries the accumulated cleaned text on success, Error carries the
// full buffer contents on failure.
type CompletionEvent struct {
	RunID  string `json:"runId"`
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Duration is a wrapper around time.Duration for JSON marshaling.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) < 2 {
		return nil
	}
	// Remove quotes
	s := string(b[1 : len(b)-1])
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// ExecRequest represents a request to start an execution run.
type ExecRequest struct {
	RunID   string            `json:"run_id,omitempty"`
	Tool    Tool              `json:"tool,omitempty"`
	Prompt  string            `json:"prompt"`
	WorkDir string            `json:"work_dir,omitempty"`
	Model   string            `json:"model,omitempty"`
	Config  map[string]string `json:"config,omitempty"`
	Timeout string            `json:"timeout,omitempty"`
}

// LoginRequest represents a request to start an interactive login flow.
type LoginRequest struct {
	RunID string `json:"run_id,omitempty"`
	Tool  Tool   `json:"tool,omitempty"`
}
