package shell

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestRunner(t *testing.T) *ExecRunner {
	t.Helper()
	return NewExecRunner(t.TempDir(), WithCompat(NativeShell{Shell: "/bin/sh"}))
}

func TestExecRunner_RunReturnsStdout(t *testing.T) {
	r := newTestRunner(t)

	out, err := r.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello\n" {
		t.Fatalf("expected stdout %q, got %q", "hello\n", out)
	}
}

func TestExecRunner_RunsInWorkspaceRoot(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner(dir, WithCompat(NativeShell{Shell: "/bin/sh"}))

	out, err := r.Run(context.Background(), "pwd -P")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	if strings.TrimSpace(out) != want {
		t.Fatalf("expected %q, got %q", want, strings.TrimSpace(out))
	}
}

func TestExecRunner_StderrWithZeroExitIsProcessError(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.Run(context.Background(), "echo ok; echo 'variable not set' 1>&2")
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if procErr.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", procErr.ExitCode)
	}
	if !strings.Contains(err.Error(), "variable not set") {
		t.Fatalf("expected stderr in message, got %q", err.Error())
	}
}

func TestExecRunner_NonZeroExitIsProcessError(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.Run(context.Background(), "exit 3")
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if procErr.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", procErr.ExitCode)
	}
	if IsEngineUnavailable(err) {
		t.Fatalf("plain failure must not be classified as engine unavailable")
	}
}

func TestExecRunner_EngineUnavailableIsClassified(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.Run(context.Background(),
		"echo 'Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?' 1>&2; exit 1")
	if !IsEngineUnavailable(err) {
		t.Fatalf("expected engine unavailable, got %v", err)
	}
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected wrapped ProcessError, got %T", err)
	}
}

func TestExecRunner_NoWorkspace(t *testing.T) {
	cases := []string{"", filepath.Join(t.TempDir(), "missing")}
	for _, dir := range cases {
		r := NewExecRunner(dir, WithCompat(NativeShell{Shell: "/bin/sh"}))
		_, err := r.Run(context.Background(), "echo hello")
		if !errors.Is(err, ErrNoWorkspace) {
			t.Fatalf("dir %q: expected ErrNoWorkspace, got %v", dir, err)
		}
	}
}

func TestExecRunner_RejectsUnbalancedQuotes(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.Run(context.Background(), `echo "unterminated`)
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if procErr.ExitCode != -1 {
		t.Fatalf("expected exit code -1 for unspawned command, got %d", procErr.ExitCode)
	}
}

func TestExecRunner_ContextTimeout(t *testing.T) {
	r := newTestRunner(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "sleep 5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestExecRunner_CompatibilityFailureStopsBeforeRun(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	r := NewExecRunner(dir, WithCompat(failingCompat{}))

	_, err := r.Run(context.Background(), "touch "+marker)
	var compatErr *CompatibilityError
	if !errors.As(err, &compatErr) {
		t.Fatalf("expected CompatibilityError, got %v", err)
	}
}

type failingCompat struct{ NativeShell }

func (failingCompat) Verify(context.Context) error {
	return &CompatibilityError{Reason: "missing", Remediation: "install it"}
}

func TestExecRunner_ExecReportsRawResult(t *testing.T) {
	r := newTestRunner(t)

	result, err := r.Exec(context.Background(), "echo out; echo err 1>&2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 || result.Stdout != "out\n" || result.Stderr != "err\n" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
