package confpatch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUpdateReplacesExistingKey(t *testing.T) {
	original := "model = \"old\"\napproval_policy = \"never\"\n"
	got := Update(original, "model", "gpt-5.1-codex")
	want := "model = \"gpt-5.1-codex\"\napproval_policy = \"never\"\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestUpdateReplacesEveryMatchingLine(t *testing.T) {
	original := "model = \"a\"\nother = 1\nmodel = \"b\"\n"
	got := Update(original, "model", "c")
	if strings.Count(got, "model = \"c\"") != 2 {
		t.Fatalf("every assignment should be rewritten, got %q", got)
	}
	if strings.Contains(got, "\"a\"") || strings.Contains(got, "\"b\"") {
		t.Fatalf("old values should be gone, got %q", got)
	}
}

func TestUpdatePrependsMissingKey(t *testing.T) {
	original := "approval_policy = \"never\"\n"
	got := Update(original, "model", "gpt-5.1")
	if !strings.HasPrefix(got, "model = \"gpt-5.1\"\n") {
		t.Fatalf("missing key should be prepended, got %q", got)
	}
	if !strings.Contains(got, "approval_policy = \"never\"") {
		t.Fatalf("existing lines must survive, got %q", got)
	}
}

func TestUpdateEmptyOriginal(t *testing.T) {
	got := Update("", "model", "x")
	if got != "model = \"x\"\n" {
		t.Fatalf("expected a single assignment, got %q", got)
	}
}

func TestUpdateIgnoresPrefixKeys(t *testing.T) {
	// "model_provider" starts with "model" but is a different key.
	original := "model_provider = \"openai\"\n"
	got := Update(original, "model", "x")
	if !strings.Contains(got, "model_provider = \"openai\"") {
		t.Fatalf("prefix key must be untouched, got %q", got)
	}
	if !strings.HasPrefix(got, "model = \"x\"\n") {
		t.Fatalf("new key should be prepended, got %q", got)
	}
}

func TestUpdateLiteralValues(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"true", "flag = true\n"},
		{"42", "flag = 42\n"},
		{"3.14", "flag = 3.14\n"},
		{`["a", "b"]`, "flag = [\"a\", \"b\"]\n"},
		{"{ a = 1 }", "flag = { a = 1 }\n"},
		{`"already quoted"`, "flag = \"already quoted\"\n"},
		{"plain words", "flag = \"plain words\"\n"},
	}
	for _, c := range cases {
		if got := Update("", "flag", c.value); got != c.want {
			t.Errorf("Update(%q) = %q, want %q", c.value, got, c.want)
		}
	}
}

func TestPathUsesCodexHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CODEX_HOME", dir)

	got, err := Path()
	if err != nil {
		t.Fatalf("path failed: %v", err)
	}
	if got != filepath.Join(dir, "config.toml") {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestSetCreatesAndUpdatesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CODEX_HOME", dir)

	if err := Set("model", "gpt-5.1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "model = \"gpt-5.1\"\n" {
		t.Fatalf("unexpected file content %q", string(b))
	}

	if err := Set("model", "gpt-5.1-codex"); err != nil {
		t.Fatalf("second set failed: %v", err)
	}
	b, _ = os.ReadFile(filepath.Join(dir, "config.toml"))
	if string(b) != "model = \"gpt-5.1-codex\"\n" {
		t.Fatalf("update should replace in place, got %q", string(b))
	}
}
