package shell

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoWorkspace is returned when a command needs a workspace directory and none is open.
var ErrNoWorkspace = errors.New("no workspace folder found")

// ProcessError reports an external command that failed at system level,
// exited non-zero, or wrote to its error stream.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		return stderr
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: exit code %d", e.Command, e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// EngineUnavailableError marks a failure caused by the container engine being unreachable.
type EngineUnavailableError struct {
	Err error
}

func (e *EngineUnavailableError) Error() string {
	return fmt.Sprintf("container engine unavailable: %v", e.Err)
}

func (e *EngineUnavailableError) Unwrap() error {
	return e.Err
}

// CompatibilityError is returned before running a command when the platform
// shim the CLI depends on is missing or misconfigured.
type CompatibilityError struct {
	Reason      string
	Remediation string
}

func (e *CompatibilityError) Error() string {
	if e.Remediation == "" {
		return e.Reason
	}
	return e.Reason + ". " + e.Remediation
}

var engineUnavailableMarkers = []string{
	"Cannot connect to the Docker daemon",
	"Is the docker daemon running",
	"docker daemon is not running",
	"error during connect",
	"failed to connect to the docker API",
}

// IsEngineUnavailable reports whether err indicates that the container engine
// itself is unreachable, as opposed to a command or parse failure.
func IsEngineUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var engineErr *EngineUnavailableError
	if errors.As(err, &engineErr) {
		return true
	}
	return containsEngineMarker(err.Error())
}

func containsEngineMarker(text string) bool {
	for _, marker := range engineUnavailableMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func classify(err *ProcessError) error {
	if containsEngineMarker(err.Stderr) || (err.Err != nil && containsEngineMarker(err.Err.Error())) {
		return &EngineUnavailableError{Err: err}
	}
	return err
}
