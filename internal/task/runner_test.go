package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/rs/zerolog"
)

type fakeExecutor struct {
	mu       sync.Mutex
	ended    *events.Emitter[ProcessEnd]
	codes    map[string]int
	executed []*Task
	execErr  error
	hold     bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		ended: events.NewEmitter[ProcessEnd](zerolog.Nop()),
		codes: map[string]int{},
	}
}

func (f *fakeExecutor) Execute(_ context.Context, t *Task) (*Execution, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.mu.Lock()
	f.executed = append(f.executed, t)
	code := f.codes[t.Command]
	f.mu.Unlock()

	execution := &Execution{ID: t.Name, Task: t, StartedAt: time.Now()}
	if !f.hold {
		go f.ended.Fire(ProcessEnd{Execution: execution, ExitCode: code})
	}
	return execution, nil
}

func (f *fakeExecutor) OnDidEndProcess(handler func(ProcessEnd)) events.Disposable {
	return f.ended.Subscribe(handler)
}

func (f *fakeExecutor) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.executed))
	for _, t := range f.executed {
		out = append(out, t.Command)
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

type recordingProgress struct {
	titles []string
	closed int
}

func (p *recordingProgress) Begin(title string) func() {
	p.titles = append(p.titles, title)
	return func() { p.closed++ }
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) IncTasks(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome]++
}

func TestRunner_ExitZeroResolves(t *testing.T) {
	exec := newFakeExecutor()
	outcomes := &outcomeCounter{}
	runner := NewRunner(exec, zerolog.Nop(), WithOutcomes(outcomes))

	if err := runner.Run(context.Background(), "./vendor/bin/sail up -d", "Sail up"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if outcomes.counts["succeeded"] != 1 {
		t.Fatalf("expected one success recorded, got %v", outcomes.counts)
	}
}

func TestRunner_NonZeroExitFails(t *testing.T) {
	exec := newFakeExecutor()
	exec.codes["false"] = 1
	runner := NewRunner(exec, zerolog.Nop())

	err := runner.Run(context.Background(), "false", "Failing")

	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected FailedError, got %v", err)
	}
	if err.Error() != "Task failed with exit code 1" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestRunner_SubscriptionDisposedAfterEnd(t *testing.T) {
	exec := newFakeExecutor()
	runner := NewRunner(exec, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if err := runner.Run(context.Background(), "true", "Task"); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if n := exec.ended.Len(); n != 0 {
		t.Fatalf("expected no lingering subscriptions, got %d", n)
	}
}

func TestRunner_IgnoresOtherExecutions(t *testing.T) {
	exec := newFakeExecutor()
	exec.hold = true
	runner := NewRunner(exec, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), "sleep", "Mine")
	}()

	deadline := time.After(time.Second)
	for len(exec.commands()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("task was never executed")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	other := &Task{Name: "Mine", Command: "sleep"}
	exec.ended.Fire(ProcessEnd{Execution: &Execution{Task: other}, ExitCode: 9})

	select {
	case err := <-done:
		t.Fatalf("run resolved from a foreign execution: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	exec.mu.Lock()
	mine := exec.executed[0]
	exec.mu.Unlock()
	exec.ended.Fire(ProcessEnd{Execution: &Execution{Task: mine}, ExitCode: 0})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not resolve")
	}
}

func TestRunner_ContextCanceled(t *testing.T) {
	exec := newFakeExecutor()
	exec.hold = true
	runner := NewRunner(exec, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := runner.Run(ctx, "sleep", "Hang"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if n := exec.ended.Len(); n != 0 {
		t.Fatalf("expected subscription released, got %d", n)
	}
}

func TestRunner_ExecuteErrorReturned(t *testing.T) {
	exec := newFakeExecutor()
	exec.execErr = errors.New("no workspace folder found")
	runner := NewRunner(exec, zerolog.Nop())

	if err := runner.Run(context.Background(), "true", "Task"); err == nil || err.Error() != "no workspace folder found" {
		t.Fatalf("expected execute error, got %v", err)
	}
	if n := exec.ended.Len(); n != 0 {
		t.Fatalf("expected subscription released, got %d", n)
	}
}

func TestRunner_RunPHPPrefixesInterpreter(t *testing.T) {
	exec := newFakeExecutor()
	runner := NewRunner(exec, zerolog.Nop(), WithPHPPath("/usr/local/bin/php"))

	if err := runner.RunPHP(context.Background(), "artisan sail:install", "Publish"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := exec.commands(); len(got) != 1 || got[0] != "/usr/local/bin/php artisan sail:install" {
		t.Fatalf("unexpected commands: %v", got)
	}
}

func TestRunner_RunWithProgressNotifiesFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.codes["php artisan migrate"] = 2
	notifier := &recordingNotifier{}
	progress := &recordingProgress{}
	runner := NewRunner(exec, zerolog.Nop(), WithNotifier(notifier), WithProgress(progress))

	runner.RunWithProgress(context.Background(), "artisan migrate", "Running Sail Migrate", true)

	if len(progress.titles) != 1 || progress.titles[0] != "Running Sail Migrate" {
		t.Fatalf("unexpected progress titles: %v", progress.titles)
	}
	if progress.closed != 1 {
		t.Fatalf("expected progress closed once, got %d", progress.closed)
	}
	if len(notifier.messages) != 1 || notifier.messages[0] != "Task failed with exit code 2" {
		t.Fatalf("unexpected notifications: %v", notifier.messages)
	}
}

func TestRunner_RunWithProgressSilentOnSuccess(t *testing.T) {
	exec := newFakeExecutor()
	notifier := &recordingNotifier{}
	runner := NewRunner(exec, zerolog.Nop(), WithNotifier(notifier))

	runner.RunWithProgress(context.Background(), "composer require laravel/sail --dev", "Installing Laravel Sail", false)

	if len(notifier.messages) != 0 {
		t.Fatalf("expected no notifications, got %v", notifier.messages)
	}
	if got := exec.commands(); got[0] != "composer require laravel/sail --dev" {
		t.Fatalf("expected command without php prefix, got %v", got)
	}
}
