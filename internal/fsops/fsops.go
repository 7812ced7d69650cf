// Package fsops provides the direct, unbuffered file-system helpers used by
// the editor front-end. No concurrency, no caching.
package fsops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// Entry describes one directory listing item.
type Entry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

// ReadFile returns the file contents as text. Invalid UTF-8 byte sequences
// are replaced rather than rejected, so binary-ish files still render.
func ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	s := string(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s, nil
}

// WriteFile writes content to path, creating or truncating the file.
func WriteFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadDir lists the entries of a directory.
func ReadDir(path string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dir %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, e := range dirEntries {
		entries = append(entries, Entry{
			Name:  e.Name(),
			Path:  filepath.Join(path, e.Name()),
			IsDir: e.IsDir(),
		})
	}
	return entries, nil
}

// RemoveFile deletes a file. Removing a file that does not exist is not an
// error.
func RemoveFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// ClearDir removes the directory and everything under it, then recreates it
// empty. A missing directory is simply created.
func ClearDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to clear %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to recreate %s: %w", path, err)
	}
	return nil
}

// NewUntitledName returns a fresh placeholder name for an unsaved buffer.
func NewUntitledName() string {
	return fmt.Sprintf("Untitled-%d", time.Now().Unix())
}
