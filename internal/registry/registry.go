// Package registry tracks live run processes so they can be cancelled by
// run id.
package registry

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// ErrNotFound is returned when no live process is registered for a run id.
// This is an expected outcome, not a system fault: it covers unknown ids,
// runs that already completed, and run modes that never register.
var ErrNotFound = errors.New("process not found")

// Handle is the registry's view of a live child process. Kill must be
// idempotent: killing an already-exited process is not an error.
type Handle interface {
	Kill() error
	Wait() error
	PID() int
}

// Registry is a lock-protected map of run id to live process handle. It is
// an explicit, injectable value rather than a singleton so executors can be
// tested with fake handles.
type Registry struct {
	mu    sync.Mutex
	procs map[string]Handle
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{procs: make(map[string]Handle)}
}

// Register inserts the handle under the run id, silently replacing any prior
// entry for that id. The previous handle, if any, is orphaned from
// cancellation; rejecting duplicates is the orchestrator's policy decision.
func (r *Registry) Register(runID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[runID] = h
}

// Lookup returns the handle registered for the run id.
func (r *Registry) Lookup(runID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.procs[runID]
	return h, ok
}

// Cancel kills the process registered for the run id. The kill is
// fire-and-forget: it does not wait for exit, and removal of the entry stays
// the owning executor's responsibility. Returns ErrNotFound when no live
// handle exists, which is the normal result for a run that already finished.
func (r *Registry) Cancel(runID string) error {
	r.mu.Lock()
	h, ok := r.procs[runID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	_ = h.Kill()
	return nil
}

// Remove deletes the entry for the run id. Removing an absent id is a no-op.
func (r *Registry) Remove(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, runID)
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Handles returns a snapshot of all registered handles, for shutdown.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	hs := make([]Handle, 0, len(r.procs))
	for _, h := range r.procs {
		hs = append(hs, h)
	}
	return hs
}

// CmdHandle adapts an *exec.Cmd to the Handle interface.
type CmdHandle struct {
	cmd *exec.Cmd
}

// NewCmdHandle wraps a started command.
func NewCmdHandle(cmd *exec.Cmd) *CmdHandle {
	return &CmdHandle{cmd: cmd}
}

// Kill forcibly terminates the process. Killing a process that has already
// exited is treated as success.
func (h *CmdHandle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	err := h.cmd.Process.Kill()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "already finished") {
		return nil
	}
	return err
}

// Wait blocks until the process exits.
func (h *CmdHandle) Wait() error {
	return h.cmd.Wait()
}

// PID returns the child's process id, or 0 before start.
func (h *CmdHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}
