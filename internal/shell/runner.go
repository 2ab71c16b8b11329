// Package shell runs external commands in the workspace root and reports
// failures as typed errors.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"
)

// waitDelay bounds how long output pipes are drained after the context kills the process.
const waitDelay = 2 * time.Second

// Runner executes a single command line to completion and returns its stdout.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// Result is the raw outcome of one process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	workspace string
	compat    Compat
	logger    zerolog.Logger
}

// Option customizes an ExecRunner.
type Option func(*ExecRunner)

// WithCompat overrides the platform compatibility layer.
func WithCompat(compat Compat) Option {
	return func(r *ExecRunner) {
		r.compat = compat
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *ExecRunner) {
		r.logger = logger
	}
}

// NewExecRunner returns a Runner rooted at workspace.
func NewExecRunner(workspace string, opts ...Option) *ExecRunner {
	r := &ExecRunner{
		workspace: workspace,
		compat:    Default(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveWorkspace validates that dir is an existing directory.
func ResolveWorkspace(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", ErrNoWorkspace
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoWorkspace
		}
		return "", fmt.Errorf("stat workspace: %w", err)
	}
	if !info.IsDir() {
		return "", ErrNoWorkspace
	}
	return dir, nil
}

// ValidateCommand rejects empty command lines and unbalanced quoting before a process is spawned.
func ValidateCommand(command string) error {
	args, err := shellwords.Parse(command)
	if err != nil {
		return &ProcessError{Command: command, ExitCode: -1, Err: fmt.Errorf("parse command: %w", err)}
	}
	if len(args) == 0 {
		return &ProcessError{Command: command, ExitCode: -1, Err: errors.New("empty command")}
	}
	return nil
}

// Run implements Runner. Output on stderr fails the command even when it exits 0,
// so CLI-level warnings surface as failures.
func (r *ExecRunner) Run(ctx context.Context, command string) (string, error) {
	result, err := r.Exec(ctx, command)
	if err != nil {
		return "", err
	}
	if result.Stderr != "" {
		return "", classify(&ProcessError{Command: command, ExitCode: result.ExitCode, Stderr: result.Stderr})
	}
	return result.Stdout, nil
}

// Exec runs command and returns its raw result. Only spawn failures, non-zero
// exits and context cancellation are errors here.
func (r *ExecRunner) Exec(ctx context.Context, command string) (Result, error) {
	dir, err := ResolveWorkspace(r.workspace)
	if err != nil {
		return Result{}, err
	}
	if err := ValidateCommand(command); err != nil {
		return Result{}, err
	}
	if err := r.compat.Verify(ctx); err != nil {
		return Result{}, err
	}

	cmd := r.compat.Command(ctx, dir, command)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().Str("command", command).Str("dir", dir).Msg("running command")

	runErr := cmd.Run()
	result := Result{
		ExitCode: exitCode(cmd, runErr),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if runErr != nil {
		procErr := &ProcessError{
			Command:  command,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Err:      runErr,
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			procErr.Err = ctxErr
		}
		return result, classify(procErr)
	}
	return result, nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		return -1
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return 0
}
