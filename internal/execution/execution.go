// Package execution turns an action and a caller context into a running job
// and drives the browser round trip for it.
package execution

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/shlex"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/command"
)

// ErrEmptyCommand is returned when a command expands to nothing.
var ErrEmptyCommand = errors.New("execution: command expands to an empty line")

// Execution owns the resources of one job's command line: the temp files
// created for list parameters and any other cleanup registered with Defer.
// Cleanups run in reverse order of registration.
type Execution struct {
	Action   *action.Action
	JobID    string
	Validate bool

	context command.Context
	tempDir string
	logger  *slog.Logger

	mu       sync.Mutex
	cleanups []func() error
}

// New prepares an execution. Temp files go to tempDir, or the OS default
// when empty.
func New(a *action.Action, ctx command.Context, jobID string, validate bool, tempDir string, logger *slog.Logger) *Execution {
	if logger == nil {
		logger = slog.Default()
	}
	return &Execution{
		Action:   a,
		JobID:    jobID,
		Validate: validate,
		context:  ctx,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// Command renders the action's template for this execution.
func (e *Execution) Command() (string, error) {
	return e.Action.Template.Expand(e.populate)
}

// Argv renders the command and splits it into shell words.
func (e *Execution) Argv() ([]string, error) {
	line, err := e.Command()
	if err != nil {
		return nil, err
	}
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("execution: splitting %q: %w", line, err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return argv, nil
}

// Defer registers a cleanup task.
func (e *Execution) Defer(fn func() error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanups = append(e.cleanups, fn)
}

// Cleanup runs every registered task, newest first. A failing task is
// logged and does not stop the others. Calling Cleanup again only runs tasks
// registered since the previous call.
func (e *Execution) Cleanup() {
	for {
		e.mu.Lock()
		n := len(e.cleanups)
		if n == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.cleanups[n-1]
		e.cleanups = e.cleanups[:n-1]
		e.mu.Unlock()

		if err := fn(); err != nil {
			e.logger.Warn("execution cleanup failed", "job_id", e.JobID, "error", err)
		}
	}
}

func (e *Execution) populate(p command.Parameter) (string, error) {
	spec, ok := command.SpecFor(p)
	if !ok {
		return "", fmt.Errorf("execution: unknown parameter %s", p)
	}
	switch spec.Kind {
	case command.KindJobID:
		return e.JobID, nil
	case command.KindFlag:
		if e.Validate {
			return "1", nil
		}
		return "0", nil
	case command.KindTempFile:
		vals, err := e.context.Strings(p)
		if err != nil {
			return "", err
		}
		return e.tempFile(strings.Join(vals, "\n"))
	default:
		return e.context.String(p)
	}
}

func (e *Execution) tempFile(contents string) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "pluginhost-"+e.JobID+"-*")
	if err != nil {
		return "", fmt.Errorf("execution: creating temp file: %w", err)
	}
	name := f.Name()
	e.Defer(func() error { return os.Remove(name) })

	if _, err := f.WriteString(contents); err != nil {
		f.Close()
		return "", fmt.Errorf("execution: writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("execution: closing %s: %w", name, err)
	}
	return name, nil
}
