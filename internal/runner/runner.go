// Package runner executes external CLI tools as child processes and streams
// their cleaned output.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sevir/hueste/internal/registry"
	"github.com/sevir/hueste/internal/sanitize"
	"github.com/sevir/hueste/internal/toolbin"
	"github.com/sevir/hueste/pkg/models"
)

const (
	channelStdout    = "stdout"
	maxOutputCapture = 1024 * 1024 // 1MB max output capture
)

// InputStrategy selects how the prompt reaches the child process.
type InputStrategy string

const (
	// InputArgv passes the prompt as a trailing command-line argument.
	// Subject to platform argument-length ceilings.
	InputArgv InputStrategy = "argv"
	// InputStdin writes the prompt to the child's standard input and closes
	// it. Avoids argument-length ceilings.
	InputStdin InputStrategy = "stdin"
)

// ValidInputStrategy checks if an input strategy is valid.
func ValidInputStrategy(s InputStrategy) bool {
	return s == InputArgv || s == InputStdin || s == ""
}

// EventSink receives a run's asynchronous notifications. Stream is called
// once per cleaned stdout line, in order; Complete is called exactly once,
// after every Stream call for that run.
type EventSink interface {
	Stream(models.StreamEvent)
	Complete(models.CompletionEvent)
}

// Runner spawns external CLI processes and drains their output. The registry
// is injected so cancellation and tests stay decoupled from global state.
type Runner struct {
	Registry   *registry.Registry
	Resolver   *toolbin.Resolver
	Input      InputStrategy // defaults to argv
	LoginShell string
	Timeout    time.Duration // 0 disables the wall-clock limit
}

// chunk is one cleaned line travelling from a reader loop to the aggregator.
type chunk struct {
	channel string
	text    string
}

// Exec runs the tool to completion, blocking the calling goroutine. It emits
// zero or more StreamEvents followed by exactly one CompletionEvent on the
// sink. Spawn failures return immediately with no registry entry and no
// events. A non-zero exit (including kill-induced termination) produces an
// ok=false completion carrying the combined stdout+stderr buffer, and a
// non-nil error.
func (r *Runner) Exec(ctx context.Context, run models.Run, sink EventSink) error {
	if !models.ValidTool(run.Tool) {
		return fmt.Errorf("unsupported tool: %s", run.Tool)
	}
	tool := string(run.Tool)

	if timeout := r.effectiveTimeout(run); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd, stdinPrompt := r.buildCommand(ctx, run)

	if run.WorkDir != "" && isDir(run.WorkDir) {
		cmd.Dir = run.WorkDir
	}
	cmd.Env = append(os.Environ(), "NO_COLOR=1")

	var stdin io.WriteCloser
	if stdinPrompt {
		p, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("failed to create stdin pipe: %w", err)
		}
		stdin = p
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", tool, err)
	}

	if stdin != nil {
		go func() {
			defer stdin.Close()
			io.WriteString(stdin, run.Prompt)
		}()
	}

	// Register before consuming any output so a cancellation arriving right
	// after spawn is guaranteed to find the handle.
	handle := registry.NewCmdHandle(cmd)
	if r.Registry != nil {
		r.Registry.Register(run.ID, handle)
	}

	output := r.drain(run, sink, stdout, stderr)

	waitErr := cmd.Wait()

	if r.Registry != nil {
		r.Registry.Remove(run.ID)
	}

	if waitErr != nil {
		sink.Complete(models.CompletionEvent{RunID: run.ID, OK: false, Error: output})
		return fmt.Errorf("%s exec failed: %w", tool, waitErr)
	}
	sink.Complete(models.CompletionEvent{RunID: run.ID, OK: true, Output: output})
	return nil
}

// drain runs the two reader loops plus the aggregator and returns the
// accumulated buffer once every line has been observed. Reader goroutines
// forward cleaned lines over a channel to a single aggregator that owns the
// buffer exclusively, so no lock guards the hot path. The readers terminate
// at pipe EOF, which happens no later than process exit.
func (r *Runner) drain(run models.Run, sink EventSink, stdout, stderr io.Reader) string {
	lines := make(chan chunk, 64)

	var readers sync.WaitGroup
	readers.Add(2)
	go readLines(&readers, stdout, channelStdout, lines)
	go readLines(&readers, stderr, "stderr", lines)
	go func() {
		readers.Wait()
		close(lines)
	}()

	var buf strings.Builder
	for c := range lines {
		if buf.Len() < maxOutputCapture {
			buf.WriteString(c.text)
			buf.WriteByte('\n')
		}
		// Only stdout is surfaced live; stderr content reaches the caller
		// through the failure payload.
		if c.channel == channelStdout && sink != nil {
			sink.Stream(models.StreamEvent{
				RunID:   run.ID,
				Channel: channelStdout,
				Data:    c.text + "\n",
			})
		}
	}
	return buf.String()
}

// readLines scans one pipe line by line, stripping escape sequences from
// each line before forwarding it. A trailing partial line (no newline before
// EOF) is flushed as a final chunk.
func readLines(wg *sync.WaitGroup, r io.Reader, channel string, out chan<- chunk) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		out <- chunk{channel: channel, text: sanitize.Strip(scanner.Text())}
	}
	// A read error mid-stream ends this loop early; lines already forwarded
	// stay in the buffer and the run proceeds to its wait step.
}

// buildCommand constructs the child command for an execution run. When the
// binary resolves, the tool is invoked directly; otherwise it is invoked by
// bare name through a login shell so interactively-configured PATH entries
// apply. The second result reports whether the prompt must be written to the
// child's stdin.
func (r *Runner) buildCommand(ctx context.Context, run models.Run) (*exec.Cmd, bool) {
	args := buildArgs(run)
	viaStdin := r.Input == InputStdin

	if path, ok := r.Resolver.Resolve(string(run.Tool)); ok {
		if !viaStdin {
			args = append(args, run.Prompt)
		}
		return exec.CommandContext(ctx, path, args...), viaStdin
	}

	if !viaStdin {
		args = append(args, run.Prompt)
	}
	cmdline := string(run.Tool) + " " + sanitize.QuoteAll(args)
	shell := toolbin.LoginShell(r.LoginShell)
	return exec.CommandContext(ctx, shell, "-lc", cmdline), viaStdin
}

// buildArgs renders the fixed subcommand, the model flag and the config
// override pairs. Overrides originate from an unordered map; keys are sorted
// for deterministic command lines.
func buildArgs(run models.Run) []string {
	args := []string{"exec", "--skip-git-repo-check"}
	if run.Model != "" {
		args = append(args, "--model", run.Model)
	}
	keys := make([]string, 0, len(run.Config))
	for k := range run.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-c", k+"="+run.Config[k])
	}
	return args
}

func (r *Runner) effectiveTimeout(run models.Run) time.Duration {
	if run.Timeout > 0 {
		return time.Duration(run.Timeout)
	}
	return r.Timeout
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

// CollectSink buffers a run's events in memory, for the non-streaming
// collect-and-return path and for tests.
type CollectSink struct {
	mu         sync.Mutex
	streams    []models.StreamEvent
	completion *models.CompletionEvent
}

// Stream implements EventSink.
func (s *CollectSink) Stream(ev models.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = append(s.streams, ev)
}

// Complete implements EventSink.
func (s *CollectSink) Complete(ev models.CompletionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completion = &ev
}

// Streams returns the stream events observed so far.
func (s *CollectSink) Streams() []models.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StreamEvent(nil), s.streams...)
}

// Completion returns the terminal event, or nil if the run has not finished.
func (s *CollectSink) Completion() *models.CompletionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completion
}
