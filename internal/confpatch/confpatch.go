// Package confpatch performs line-oriented key/value edits on the codex CLI
// configuration file. It deliberately avoids a full TOML parser: the patch
// rewrites or prepends a single `key = value` line and leaves every other
// line byte-for-byte intact.
package confpatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Path returns the codex config file location, creating the containing
// directory if needed. $CODEX_HOME overrides the default ~/.codex.
func Path() (string, error) {
	home := os.Getenv("CODEX_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home dir: %w", err)
		}
		home = filepath.Join(userHome, ".codex")
	}
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	return filepath.Join(home, "config.toml"), nil
}

// Set updates key to value in the codex config file, creating the file when
// absent.
func Set(key, value string) error {
	path, err := Path()
	if err != nil {
		return err
	}

	existing := ""
	if b, err := os.ReadFile(path); err == nil {
		existing = string(b)
	}

	updated := Update(existing, key, value)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Update replaces every `key = ...` line in original with the new value, or
// prepends one when the key is absent. Values that already look like TOML
// literals (booleans, numbers, arrays, tables, quoted strings) are written
// as-is; anything else is double-quoted.
func Update(original, key, value string) string {
	var out strings.Builder
	out.Grow(len(original) + len(key) + len(value) + 8)

	replaced := false
	for _, line := range splitLines(original) {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, key) {
			rest := strings.TrimLeft(trimmed[len(key):], " \t")
			if strings.HasPrefix(rest, "=") {
				writeAssignment(&out, key, value)
				replaced = true
				continue
			}
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}

	if replaced {
		return out.String()
	}

	var pref strings.Builder
	writeAssignment(&pref, key, value)
	pref.WriteString(original)
	return pref.String()
}

func writeAssignment(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(" = ")
	if isLiteral(value) {
		b.WriteString(strings.TrimSpace(value))
	} else {
		b.WriteByte('"')
		b.WriteString(value)
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

func isLiteral(val string) bool {
	v := strings.TrimSpace(val)
	if strings.EqualFold(v, "true") || strings.EqualFold(v, "false") {
		return true
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return true
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return true
	}
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		return true
	}
	if strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") {
		return true
	}
	if strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		return true
	}
	if strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
		return true
	}
	return false
}

// splitLines splits on newlines without keeping a trailing empty element for
// a final newline, matching line-by-line rewrite semantics.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
