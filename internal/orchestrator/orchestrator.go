// Package orchestrator coordinates run execution, cancellation and event
// dispatch for the external CLI tools.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sevir/hueste/internal/registry"
	"github.com/sevir/hueste/internal/runner"
	"github.com/sevir/hueste/internal/toolbin"
	"github.com/sevir/hueste/pkg/models"
)

// ErrDuplicateRun is returned when reject_duplicate_runs is enabled and a
// run id is still live in the registry.
var ErrDuplicateRun = errors.New("run id already active")

// Config holds orchestrator configuration.
type Config struct {
	ToolBins            map[string]string
	LoginShell          string
	InputStrategy       string
	RunTimeout          time.Duration
	RejectDuplicateRuns bool
	DefaultTool         string
	DefaultModel        string
}

// Orchestrator owns the process registry and dispatches runs. Each run
// executes on its own goroutine, independent of the caller's thread; the
// registry is the only state shared across runs.
type Orchestrator struct {
	registry *registry.Registry
	runner   *runner.Runner
	cfg      Config

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	strategy := runner.InputStrategy(cfg.InputStrategy)
	if !runner.ValidInputStrategy(strategy) {
		return nil, fmt.Errorf("invalid input strategy: %s (valid: argv, stdin)", cfg.InputStrategy)
	}

	defaultTool := models.Tool(cfg.DefaultTool)
	if !models.ValidTool(defaultTool) {
		return nil, fmt.Errorf("invalid default tool: %s (valid: codex, claude)", cfg.DefaultTool)
	}

	reg := registry.New()
	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		registry: reg,
		runner: &runner.Runner{
			Registry:   reg,
			Resolver:   &toolbin.Resolver{LoginShell: cfg.LoginShell, Overrides: cfg.ToolBins},
			Input:      strategy,
			LoginShell: cfg.LoginShell,
			Timeout:    cfg.RunTimeout,
		},
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	return o, nil
}

// BuildRun normalizes an inbound request into a Run, applying the default
// tool and model and generating a run id when the caller supplies none.
func (o *Orchestrator) BuildRun(req models.ExecRequest) (models.Run, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return models.Run{}, fmt.Errorf("prompt is required")
	}

	tool := req.Tool
	if tool == "" {
		tool = models.Tool(o.cfg.DefaultTool)
	}
	if tool == "" {
		tool = models.DefaultTool()
	}
	if !models.ValidTool(tool) {
		return models.Run{}, fmt.Errorf("invalid tool: %s (valid: codex, claude)", tool)
	}

	model := req.Model
	if model == "" {
		model = o.cfg.DefaultModel
	}

	var timeout models.Duration
	if req.Timeout != "" {
		dur, err := time.ParseDuration(req.Timeout)
		if err != nil {
			return models.Run{}, fmt.Errorf("invalid timeout: %w", err)
		}
		timeout = models.Duration(dur)
	}

	id := req.RunID
	if id == "" {
		id = generateID()
	}

	return models.Run{
		ID:      id,
		Tool:    tool,
		Prompt:  req.Prompt,
		WorkDir: req.WorkDir,
		Model:   model,
		Config:  req.Config,
		Mode:    models.ModeExec,
		Timeout: timeout,
	}, nil
}

// Exec runs to completion on the calling goroutine, emitting events on the
// sink. Intended to run off any latency-sensitive caller thread.
func (o *Orchestrator) Exec(ctx context.Context, run models.Run, sink runner.EventSink) error {
	if o.cfg.RejectDuplicateRuns {
		if _, live := o.registry.Lookup(run.ID); live {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
		}
	}

	logRunStarted(run)
	start := time.Now()
	err := o.runner.Exec(ctx, run, sink)
	logRunFinished(run, err, time.Since(start))
	return err
}

// ExecBackground dispatches the run on its own goroutine, bounded by the
// orchestrator's lifetime.
func (o *Orchestrator) ExecBackground(run models.Run, sink runner.EventSink) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_ = o.Exec(o.ctx, run, sink)
	}()
}

// Login runs the interactive authentication flow for a tool.
func (o *Orchestrator) Login(ctx context.Context, tool models.Tool, runID string, sink runner.EventSink) error {
	if tool == "" {
		tool = models.Tool(o.cfg.DefaultTool)
	}
	if tool == "" {
		tool = models.DefaultTool()
	}
	if runID == "" {
		runID = generateID()
	}

	log.Printf("run_event=login_started run_id=%s tool=%s", runID, tool)
	err := o.runner.Login(ctx, tool, runID, sink)
	if err != nil {
		log.Printf("run_event=login_finished run_id=%s tool=%s error=%q", runID, tool, err.Error())
		return err
	}
	log.Printf("run_event=login_finished run_id=%s tool=%s", runID, tool)
	return nil
}

// Cancel terminates the in-flight process for the run id. A not-found result
// is the expected outcome for unknown ids and already-completed runs; the
// caller that issued the cancel correlates by run id itself.
func (o *Orchestrator) Cancel(runID string) error {
	err := o.registry.Cancel(runID)
	if err != nil {
		log.Printf("run_event=cancel_missed run_id=%s", runID)
		return err
	}
	log.Printf("run_event=cancelled run_id=%s", runID)
	return nil
}

// ActiveRuns returns the number of currently registered processes.
func (o *Orchestrator) ActiveRuns() int {
	return o.registry.Len()
}

// Registry exposes the process registry for tests and diagnostics.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// ResolveTool reports where the binary for a tool would be found, for
// front-end diagnostics.
func (o *Orchestrator) ResolveTool(tool string) (string, bool) {
	return o.runner.Resolver.Resolve(tool)
}

// Shutdown kills all live processes and waits for background runs to settle.
func (o *Orchestrator) Shutdown() {
	o.cancel()
	for _, h := range o.registry.Handles() {
		_ = h.Kill()
	}
	o.wg.Wait()
}

func generateID() string {
	return fmt.Sprintf("run-%s", uuid.New().String()[:8])
}

func logRunStarted(run models.Run) {
	log.Printf(
		"run_event=started run_id=%s tool=%s model=%q work_dir=%q config=%v timeout=%q prompt_len=%d prompt_preview=%q",
		run.ID,
		run.Tool,
		run.Model,
		run.WorkDir,
		run.Config,
		time.Duration(run.Timeout).String(),
		len(run.Prompt),
		truncateForLog(run.Prompt, 160),
	)
}

func logRunFinished(run models.Run, err error, duration time.Duration) {
	if err != nil {
		log.Printf(
			"run_event=finished run_id=%s tool=%s ok=false error=%q duration=%q",
			run.ID, run.Tool, err.Error(), duration.String(),
		)
		return
	}
	log.Printf(
		"run_event=finished run_id=%s tool=%s ok=true duration=%q",
		run.ID, run.Tool, duration.String(),
	)
}

func truncateForLog(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
