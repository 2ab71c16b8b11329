package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/rs/zerolog"
)

// FailedError reports a task that exited with a non-zero code.
type FailedError struct {
	ExitCode int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("Task failed with exit code %d", e.ExitCode)
}

// Progress shows a non-cancellable indicator; the returned func hides it.
type Progress interface {
	Begin(title string) func()
}

// Notifier surfaces user-facing error messages.
type Notifier interface {
	Error(message string)
}

// Outcome records the result of a finished task.
type Outcome interface {
	IncTasks(outcome string)
}

// Runner turns executor submissions into blocking calls.
type Runner struct {
	executor Executor
	phpPath  string
	progress Progress
	notifier Notifier
	outcomes Outcome
	logger   zerolog.Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithPHPPath sets the interpreter prefixed by RunPHP.
func WithPHPPath(path string) RunnerOption {
	return func(r *Runner) {
		r.phpPath = path
	}
}

// WithProgress sets the progress indicator used by RunWithProgress.
func WithProgress(progress Progress) RunnerOption {
	return func(r *Runner) {
		r.progress = progress
	}
}

// WithNotifier sets where RunWithProgress reports failures.
func WithNotifier(notifier Notifier) RunnerOption {
	return func(r *Runner) {
		r.notifier = notifier
	}
}

// WithOutcomes records task outcomes, typically into metrics.
func WithOutcomes(outcomes Outcome) RunnerOption {
	return func(r *Runner) {
		r.outcomes = outcomes
	}
}

// NewRunner returns a Runner submitting to executor.
func NewRunner(executor Executor, logger zerolog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		executor: executor,
		phpPath:  "php",
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run submits command as a task named displayName and blocks until its
// process ends. Exit code 0 returns nil; anything else returns *FailedError.
// Each call owns one process-end subscription, released when it fires or
// when ctx is done. Concurrent calls do not coordinate.
func (r *Runner) Run(ctx context.Context, command, displayName string) error {
	t := &Task{Name: displayName, Command: command}

	ended := make(chan int, 1)
	var once sync.Once
	var sub events.Disposable
	sub = r.executor.OnDidEndProcess(func(end ProcessEnd) {
		if end.Execution == nil || end.Execution.Task != t {
			return
		}
		once.Do(func() {
			sub.Dispose()
			ended <- end.ExitCode
		})
	})

	if _, err := r.executor.Execute(ctx, t); err != nil {
		sub.Dispose()
		r.record(false)
		return err
	}

	select {
	case code := <-ended:
		sub.Dispose()
		if code != 0 {
			r.record(false)
			return &FailedError{ExitCode: code}
		}
		r.record(true)
		return nil
	case <-ctx.Done():
		sub.Dispose()
		r.record(false)
		return ctx.Err()
	}
}

// RunPHP runs command through the configured PHP interpreter.
func (r *Runner) RunPHP(ctx context.Context, command, displayName string) error {
	return r.Run(ctx, r.phpPath+" "+command, displayName)
}

// RunWithProgress runs the task behind a progress indicator titled
// displayName. Failures are shown through the notifier and never returned.
func (r *Runner) RunWithProgress(ctx context.Context, command, displayName string, usePHP bool) {
	if r.progress != nil {
		done := r.progress.Begin(displayName)
		defer done()
	}

	run := r.Run
	if usePHP {
		run = r.RunPHP
	}
	if err := run(ctx, command, displayName); err != nil {
		r.logger.Error().Err(err).Str("task", displayName).Msg("task failed")
		if r.notifier != nil {
			r.notifier.Error(message(err))
		}
	}
}

func message(err error) string {
	var failed *FailedError
	if errors.As(err, &failed) {
		return failed.Error()
	}
	return err.Error()
}

func (r *Runner) record(succeeded bool) {
	if r.outcomes == nil {
		return
	}
	if succeeded {
		r.outcomes.IncTasks("succeeded")
		return
	}
	r.outcomes.IncTasks("failed")
}
