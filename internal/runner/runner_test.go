package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sevir/hueste/internal/registry"
	"github.com/sevir/hueste/internal/toolbin"
	"github.com/sevir/hueste/pkg/models"
)

// writeFakeCodex installs a shell script as the codex binary for the test via
// the CODEX_BIN override.
func writeFakeCodex(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts are POSIX-only")
	}
	path := filepath.Join(t.TempDir(), "codex")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write fake codex: %v", err)
	}
	t.Setenv("CODEX_BIN", path)
	return path
}

func newTestRunner() *Runner {
	return &Runner{
		Registry: registry.New(),
		Resolver: &toolbin.Resolver{},
	}
}

func TestExecStreamsLinesInOrder(t *testing.T) {
	writeFakeCodex(t, "echo one\necho two\necho three\n")

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{ID: "run-ord", Tool: models.ToolCodex, Prompt: "p"}

	if err := r.Exec(context.Background(), run, sink); err != nil {
		t.Fatalf("exec failed: %v", err)
	}

	streams := sink.Streams()
	if len(streams) != 3 {
		t.Fatalf("expected 3 stream events, got %d", len(streams))
	}
	want := []string{"one\n", "two\n", "three\n"}
	for i, ev := range streams {
		if ev.Data != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], ev.Data)
		}
		if ev.RunID != "run-ord" {
			t.Errorf("event %d: wrong run id %s", i, ev.RunID)
		}
		if ev.Channel != "stdout" {
			t.Errorf("event %d: wrong channel %s", i, ev.Channel)
		}
	}

	comp := sink.Completion()
	if comp == nil {
		t.Fatal("missing completion event")
	}
	if !comp.OK {
		t.Fatalf("expected ok completion, got error %q", comp.Error)
	}
	if comp.Output != "one\ntwo\nthree\n" {
		t.Fatalf("unexpected output %q", comp.Output)
	}
}

func TestExecStripsEscapeSequences(t *testing.T) {
	writeFakeCodex(t, "printf '\\033[31mRed\\033[0m line\\n'\n")

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{ID: "run-ansi", Tool: models.ToolCodex, Prompt: "p"}

	if err := r.Exec(context.Background(), run, sink); err != nil {
		t.Fatalf("exec failed: %v", err)
	}

	streams := sink.Streams()
	if len(streams) != 1 {
		t.Fatalf("expected 1 stream event, got %d", len(streams))
	}
	if streams[0].Data != "Red line\n" {
		t.Fatalf("expected stripped line, got %q", streams[0].Data)
	}
}

func TestExecNonZeroExit(t *testing.T) {
	writeFakeCodex(t, "echo out-line\necho err-line >&2\nexit 3\n")

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{ID: "run-fail", Tool: models.ToolCodex, Prompt: "p"}

	err := r.Exec(context.Background(), run, sink)
	if err == nil {
		t.Fatal("expected an error for non-zero exit")
	}

	comp := sink.Completion()
	if comp == nil {
		t.Fatal("missing completion event")
	}
	if comp.OK {
		t.Fatal("expected ok=false")
	}
	if !strings.Contains(comp.Error, "err-line") {
		t.Fatalf("failure payload should include stderr, got %q", comp.Error)
	}
	if !strings.Contains(comp.Error, "out-line") {
		t.Fatalf("failure payload should include stdout, got %q", comp.Error)
	}
}

func TestExecStderrNotStreamed(t *testing.T) {
	writeFakeCodex(t, "echo visible\necho hidden >&2\n")

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{ID: "run-err", Tool: models.ToolCodex, Prompt: "p"}

	if err := r.Exec(context.Background(), run, sink); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	for _, ev := range sink.Streams() {
		if strings.Contains(ev.Data, "hidden") {
			t.Fatal("stderr content must not be streamed live")
		}
	}
	// But it lands in the accumulated buffer.
	comp := sink.Completion()
	if !strings.Contains(comp.Output, "hidden") {
		t.Fatalf("stderr missing from the buffer: %q", comp.Output)
	}
}

func TestExecPromptAsTrailingArg(t *testing.T) {
	writeFakeCodex(t, `for a in "$@"; do last="$a"; done`+"\necho \"last:$last\"\n")

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{ID: "run-argv", Tool: models.ToolCodex, Prompt: "hello world"}

	if err := r.Exec(context.Background(), run, sink); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	comp := sink.Completion()
	if !strings.Contains(comp.Output, "last:hello world") {
		t.Fatalf("prompt should be the trailing argument, got %q", comp.Output)
	}
}

func TestExecPromptViaStdin(t *testing.T) {
	writeFakeCodex(t, "prompt=$(cat)\necho \"stdin:$prompt\"\n")

	r := newTestRunner()
	r.Input = InputStdin
	sink := &CollectSink{}
	run := models.Run{ID: "run-stdin", Tool: models.ToolCodex, Prompt: "from the pipe"}

	if err := r.Exec(context.Background(), run, sink); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	comp := sink.Completion()
	if !strings.Contains(comp.Output, "stdin:from the pipe") {
		t.Fatalf("prompt should arrive on stdin, got %q", comp.Output)
	}
}

func TestExecModelAndConfigFlags(t *testing.T) {
	writeFakeCodex(t, "echo \"args:$*\"\n")

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{
		ID:     "run-flags",
		Tool:   models.ToolCodex,
		Prompt: "p",
		Model:  "gpt-5.1-codex",
		Config: map[string]string{"b_key": "2", "a_key": "1"},
	}

	if err := r.Exec(context.Background(), run, sink); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	out := sink.Completion().Output
	if !strings.Contains(out, "exec --skip-git-repo-check --model gpt-5.1-codex") {
		t.Fatalf("missing fixed args, got %q", out)
	}
	// Config keys are emitted sorted.
	if !strings.Contains(out, "-c a_key=1 -c b_key=2") {
		t.Fatalf("config overrides missing or unordered, got %q", out)
	}
}

func TestExecCancellation(t *testing.T) {
	writeFakeCodex(t, "echo started\nsleep 10\necho never\n")

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{ID: "run-cancel", Tool: models.ToolCodex, Prompt: "p"}

	done := make(chan error, 1)
	go func() { done <- r.Exec(context.Background(), run, sink) }()

	// Wait for the process to register, then cancel it.
	deadline := time.After(5 * time.Second)
	for {
		if _, ok := r.Registry.Lookup("run-cancel"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("process never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if err := r.Registry.Cancel("run-cancel"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error after kill")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("exec did not return after kill")
	}

	comp := sink.Completion()
	if comp == nil || comp.OK {
		t.Fatal("expected ok=false completion after cancellation")
	}
	// The executor removes the entry after wait.
	if _, ok := r.Registry.Lookup("run-cancel"); ok {
		t.Fatal("registry entry should be removed after the run settles")
	}
}

func TestExecTimeout(t *testing.T) {
	writeFakeCodex(t, "sleep 10\n")

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{
		ID:      "run-timeout",
		Tool:    models.ToolCodex,
		Prompt:  "p",
		Timeout: models.Duration(100 * time.Millisecond),
	}

	start := time.Now()
	err := r.Exec(context.Background(), run, sink)
	if err == nil {
		t.Fatal("expected timeout failure")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout did not fire")
	}
	if comp := sink.Completion(); comp == nil || comp.OK {
		t.Fatal("expected ok=false completion on timeout")
	}
}

func TestExecSpawnFailureEmitsNothing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX-only")
	}
	// Point the override at a path that exists but is not executable.
	path := filepath.Join(t.TempDir(), "codex")
	if err := os.WriteFile(path, []byte("not a script"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CODEX_BIN", path)

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{ID: "run-spawn", Tool: models.ToolCodex, Prompt: "p"}

	err := r.Exec(context.Background(), run, sink)
	if err == nil {
		t.Fatal("expected spawn failure")
	}
	if len(sink.Streams()) != 0 {
		t.Fatal("no stream events expected on spawn failure")
	}
	if sink.Completion() != nil {
		t.Fatal("no completion event expected on spawn failure")
	}
	if _, ok := r.Registry.Lookup("run-spawn"); ok {
		t.Fatal("no registry entry expected on spawn failure")
	}
}

func TestExecInvalidTool(t *testing.T) {
	r := newTestRunner()
	err := r.Exec(context.Background(), models.Run{ID: "x", Tool: "gemini", Prompt: "p"}, &CollectSink{})
	if err == nil {
		t.Fatal("expected error for unsupported tool")
	}
}

func TestExecWorkDir(t *testing.T) {
	writeFakeCodex(t, "pwd\n")
	dir := t.TempDir()

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{ID: "run-wd", Tool: models.ToolCodex, Prompt: "p", WorkDir: dir}

	if err := r.Exec(context.Background(), run, sink); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	out := strings.TrimSpace(sink.Completion().Output)
	// Compare resolved paths: the temp dir may be behind a symlink.
	wantReal, _ := filepath.EvalSymlinks(dir)
	gotReal, _ := filepath.EvalSymlinks(out)
	if gotReal != wantReal {
		t.Fatalf("expected workdir %s, got %s", wantReal, gotReal)
	}
}

func TestExecMissingWorkDirIgnored(t *testing.T) {
	writeFakeCodex(t, "echo ok\n")

	r := newTestRunner()
	sink := &CollectSink{}
	run := models.Run{ID: "run-nowd", Tool: models.ToolCodex, Prompt: "p", WorkDir: "/no/such/dir"}

	if err := r.Exec(context.Background(), run, sink); err != nil {
		t.Fatalf("a missing workdir should not fail the run: %v", err)
	}
}

func TestLoginStreamsAndCompletes(t *testing.T) {
	writeFakeCodex(t, "echo visit https://example.com/auth\n")

	r := newTestRunner()
	sink := &CollectSink{}

	if err := r.Login(context.Background(), models.ToolCodex, "login-1", sink); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	streams := sink.Streams()
	if len(streams) != 1 || !strings.Contains(streams[0].Data, "example.com/auth") {
		t.Fatalf("expected the auth URL to stream, got %v", streams)
	}
	comp := sink.Completion()
	if comp == nil || !comp.OK {
		t.Fatal("expected ok completion")
	}
	// Login runs never register.
	if r.Registry.Len() != 0 {
		t.Fatal("login must not create a registry entry")
	}
}

func TestLoginFailure(t *testing.T) {
	writeFakeCodex(t, "exit 1\n")

	r := newTestRunner()
	sink := &CollectSink{}

	err := r.Login(context.Background(), models.ToolCodex, "login-2", sink)
	if err == nil {
		t.Fatal("expected login failure")
	}
	if comp := sink.Completion(); comp == nil || comp.OK {
		t.Fatal("expected ok=false completion")
	}
}

func TestValidInputStrategy(t *testing.T) {
	if !ValidInputStrategy(InputArgv) || !ValidInputStrategy(InputStdin) || !ValidInputStrategy("") {
		t.Fatal("expected argv, stdin and empty to be valid")
	}
	if ValidInputStrategy("carrier-pigeon") {
		t.Fatal("expected unknown strategy to be invalid")
	}
}

func TestExecContextCancelled(t *testing.T) {
	writeFakeCodex(t, "sleep 10\n")

	ctx, cancel := context.WithCancel(context.Background())
	r := newTestRunner()
	sink := &CollectSink{}

	done := make(chan error, 1)
	go func() {
		done <- r.Exec(ctx, models.Run{ID: "run-ctx", Tool: models.ToolCodex, Prompt: "p"}, sink)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected failure after context cancellation")
		}
		if errors.Is(err, context.Canceled) {
			// Acceptable: surfaced directly.
			return
		}
	case <-time.After(5 * time.Second):
		t.Fatal("exec did not return after context cancellation")
	}
}
