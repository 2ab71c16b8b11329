package shell

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Compat builds the process that runs a shell command line on the current platform.
type Compat interface {
	// Verify checks that the platform layer is usable. It runs before every command.
	Verify(ctx context.Context) error
	// Command returns a process that runs command inside dir.
	Command(ctx context.Context, dir, command string) *exec.Cmd
}

// ForPlatform returns the compatibility layer for goos.
func ForPlatform(goos string) Compat {
	if goos == "windows" {
		return NewWSL()
	}
	return NativeShell{}
}

// Default returns the compatibility layer for the running platform.
func Default() Compat {
	return ForPlatform(runtime.GOOS)
}

// NativeShell runs commands through $SHELL -c, falling back to /bin/sh.
type NativeShell struct {
	Shell string
}

// Verify implements Compat.
func (NativeShell) Verify(context.Context) error {
	return nil
}

// Command implements Compat.
func (s NativeShell) Command(ctx context.Context, dir, command string) *exec.Cmd {
	shell := s.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = dir
	return cmd
}

// WSL runs commands inside the default WSL 2 distribution.
type WSL struct {
	list func(ctx context.Context) ([]byte, error)
}

// NewWSL returns a WSL layer that inspects `wsl.exe -l -v`.
func NewWSL() *WSL {
	return &WSL{
		list: func(ctx context.Context) ([]byte, error) {
			return exec.CommandContext(ctx, "wsl.exe", "-l", "-v").Output()
		},
	}
}

// Verify implements Compat. The check is repeated on every call so a WSL
// install or version change mid-session is picked up.
func (w *WSL) Verify(ctx context.Context) error {
	out, err := w.list(ctx)
	if err != nil {
		return &CompatibilityError{
			Reason:      "WSL is not installed or not available",
			Remediation: "Install WSL 2 with `wsl --install` from an elevated terminal and restart",
		}
	}

	name, version, ok := defaultDistribution(decodeWSLOutput(out))
	if !ok {
		return &CompatibilityError{
			Reason:      "no default WSL distribution is configured",
			Remediation: "Install a distribution with `wsl --install -d Ubuntu` and set it as default with `wsl --set-default <name>`",
		}
	}
	if version != "2" {
		return &CompatibilityError{
			Reason:      "default WSL distribution " + name + " is running WSL " + version,
			Remediation: "Convert it with `wsl --set-version " + name + " 2`",
		}
	}
	return nil
}

// Command implements Compat.
func (w *WSL) Command(ctx context.Context, dir, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "wsl.exe", "--cd", dir, "-e", "bash", "-lc", command)
}

// wsl.exe writes UTF-16LE; dropping NUL bytes is enough for the ASCII table it prints.
func decodeWSLOutput(out []byte) string {
	out = bytes.TrimPrefix(out, []byte{0xff, 0xfe})
	return string(bytes.ReplaceAll(out, []byte{0}, nil))
}

// defaultDistribution finds the row marked with '*' in `wsl -l -v` output:
//
//	  NAME      STATE      VERSION
//	* Ubuntu    Running    2
func defaultDistribution(listing string) (name, version string, ok bool) {
	for _, line := range strings.Split(listing, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "*"))
		if len(fields) < 3 {
			return "", "", false
		}
		return fields[0], fields[len(fields)-1], true
	}
	return "", "", false
}
