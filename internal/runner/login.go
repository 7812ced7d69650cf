package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sevir/hueste/internal/toolbin"
	"github.com/sevir/hueste/pkg/models"
)

// Login runs the tool's interactive authentication flow. The child inherits
// the daemon's standard input so credential prompts reach a real terminal,
// only stdout is forwarded, and no registry entry is created — login runs
// are not exposed to cancellation.
func (r *Runner) Login(ctx context.Context, tool models.Tool, runID string, sink EventSink) error {
	if !models.ValidTool(tool) {
		return fmt.Errorf("unsupported tool: %s", tool)
	}

	var cmd *exec.Cmd
	if path, ok := r.Resolver.Resolve(string(tool)); ok {
		cmd = exec.CommandContext(ctx, path, "login")
	} else {
		shell := toolbin.LoginShell(r.LoginShell)
		cmd = exec.CommandContext(ctx, shell, "-lc", string(tool)+" login")
	}
	cmd.Stdin = os.Stdin
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s login: %w", tool, err)
	}

	lines := make(chan chunk, 64)
	var readers sync.WaitGroup
	readers.Add(1)
	go readLines(&readers, stdout, channelStdout, lines)
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
		if sink != nil {
			sink.Stream(models.StreamEvent{
				RunID:   runID,
				Channel: channelStdout,
				Data:    c.text + "\n",
			})
		}
	}

	waitErr := cmd.Wait()
	output := buf.String()

	if waitErr != nil {
		sink.Complete(models.CompletionEvent{RunID: runID, OK: false, Error: output})
		return fmt.Errorf("%s login failed: %w", tool, waitErr)
	}
	sink.Complete(models.CompletionEvent{RunID: runID, OK: true, Output: output})
	return nil
}
