// Package task runs named shell tasks whose output streams to the user and
// whose completion is announced through a process-end event.
package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/nholik/sail-sentinel/internal/shell"
	"github.com/rs/zerolog"
)

// Task is a named shell command.
type Task struct {
	Name    string
	Command string
}

// Execution is one submitted run of a Task.
type Execution struct {
	ID        string
	Task      *Task
	StartedAt time.Time
}

// ProcessEnd is fired once per execution when its process exits. ExitCode
// is -1 when the process could not report one.
type ProcessEnd struct {
	Execution *Execution
	ExitCode  int
}

// Executor launches tasks and announces their completion.
type Executor interface {
	Execute(ctx context.Context, t *Task) (*Execution, error)
	OnDidEndProcess(handler func(ProcessEnd)) events.Disposable
}

// ShellExecutor runs tasks through the shell compatibility layer in the
// workspace directory.
type ShellExecutor struct {
	workspace string
	compat    shell.Compat
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	logger    zerolog.Logger
	ended     *events.Emitter[ProcessEnd]
	counter   atomic.Uint64
}

// ExecutorOption customizes a ShellExecutor.
type ExecutorOption func(*ShellExecutor)

// WithStreams sets where task processes read input and write output.
func WithStreams(stdin io.Reader, stdout, stderr io.Writer) ExecutorOption {
	return func(e *ShellExecutor) {
		e.stdin = stdin
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithExecutorCompat overrides the platform shell wrapper.
func WithExecutorCompat(compat shell.Compat) ExecutorOption {
	return func(e *ShellExecutor) {
		e.compat = compat
	}
}

// NewShellExecutor returns an executor bound to workspace.
func NewShellExecutor(workspace string, logger zerolog.Logger, opts ...ExecutorOption) *ShellExecutor {
	e := &ShellExecutor{
		workspace: workspace,
		compat:    shell.Default(),
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ended = events.NewEmitter[ProcessEnd](logger)
	return e
}

// OnDidEndProcess subscribes to process-end events of every execution.
func (e *ShellExecutor) OnDidEndProcess(handler func(ProcessEnd)) events.Disposable {
	return e.ended.Subscribe(handler)
}

// Execute starts the task and returns once the process is running. The
// process-end event fires from a background goroutine when it exits.
func (e *ShellExecutor) Execute(ctx context.Context, t *Task) (*Execution, error) {
	if t == nil {
		return nil, errors.New("task is nil")
	}
	dir, err := shell.ResolveWorkspace(e.workspace)
	if err != nil {
		return nil, err
	}
	if err := shell.ValidateCommand(t.Command); err != nil {
		return nil, err
	}
	if err := e.compat.Verify(ctx); err != nil {
		return nil, err
	}

	cmd := e.compat.Command(ctx, dir, t.Command)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	execution := &Execution{
		ID:        fmt.Sprintf("%s-%d", t.Name, e.counter.Add(1)),
		Task:      t,
		StartedAt: time.Now().UTC(),
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start task %q: %w", t.Name, err)
	}
	e.logger.Debug().
		Str("task", t.Name).
		Str("execution", execution.ID).
		Str("command", t.Command).
		Msg("task started")

	go func() {
		code := exitCode(cmd.Wait())
		e.logger.Debug().
			Str("task", t.Name).
			Str("execution", execution.ID).
			Int("exit_code", code).
			Dur("elapsed", time.Since(execution.StartedAt)).
			Msg("task process ended")
		e.ended.Fire(ProcessEnd{Execution: execution, ExitCode: code})
	}()

	return execution, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
