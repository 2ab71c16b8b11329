package sail

import (
	"context"
	"fmt"
	"strings"

	"github.com/nholik/sail-sentinel/internal/shell"
)

// TaskRunner submits user-visible shell tasks.
type TaskRunner interface {
	Run(ctx context.Context, command, displayName string) error
	RunWithProgress(ctx context.Context, command, displayName string, usePHP bool)
}

// Refresher is notified after a command that changes service state.
type Refresher interface {
	Fire()
}

// Paths holds the configured tool locations.
type Paths struct {
	Sail     string
	Artisan  string
	Composer string
}

// Commands exposes the Sail, Composer and Artisan actions offered to the user.
// Callers must not issue conflicting commands (up and down) concurrently.
type Commands struct {
	tasks     TaskRunner
	runner    shell.Runner
	refresher Refresher
	paths     Paths
}

// NewCommands wires the command vocabulary to its runners.
func NewCommands(tasks TaskRunner, runner shell.Runner, refresher Refresher, paths Paths) *Commands {
	return &Commands{
		tasks:     tasks,
		runner:    runner,
		refresher: refresher,
		paths:     paths,
	}
}

func (c *Commands) sail(args ...string) string {
	return strings.Join(append([]string{c.paths.Sail}, args...), " ")
}

func (c *Commands) runAndRefresh(ctx context.Context, command, name string) error {
	if err := c.tasks.Run(ctx, command, name); err != nil {
		return err
	}
	c.refresh()
	return nil
}

func (c *Commands) refresh() {
	if c.refresher != nil {
		c.refresher.Fire()
	}
}

// Up starts every service in the background.
func (c *Commands) Up(ctx context.Context) error {
	return c.runAndRefresh(ctx, c.sail("up", "-d"), "Sail up")
}

// Down stops and removes every service.
func (c *Commands) Down(ctx context.Context) error {
	return c.runAndRefresh(ctx, c.sail("down"), "Stopping all services")
}

// Start starts a single service.
func (c *Commands) Start(ctx context.Context, service string) error {
	return c.runAndRefresh(ctx, c.sail("up", "-d", service), "Starting "+service)
}

// Stop stops a single service.
func (c *Commands) Stop(ctx context.Context, service string) error {
	return c.runAndRefresh(ctx, c.sail("down", service), "Stopping "+service)
}

// Kill kills a single service.
func (c *Commands) Kill(ctx context.Context, service string) error {
	return c.runAndRefresh(ctx, c.sail("kill", service), "Killing "+service)
}

// Pause pauses a single service.
func (c *Commands) Pause(ctx context.Context, service string) error {
	return c.runAndRefresh(ctx, c.sail("pause", service), "Pausing "+service)
}

// Unpause resumes a paused service.
func (c *Commands) Unpause(ctx context.Context, service string) error {
	return c.runAndRefresh(ctx, c.sail("unpause", service), "Unpausing "+service)
}

// Restart restarts the stack.
func (c *Commands) Restart(ctx context.Context) error {
	return c.runAndRefresh(ctx, c.sail("restart"), "Sail restarting")
}

// Stats streams resource usage for a service until the user interrupts it.
func (c *Commands) Stats(ctx context.Context, service string) error {
	return c.tasks.Run(ctx, c.sail("stats", service), "Showing stats for "+service)
}

// Shell opens a shell in the application container.
func (c *Commands) Shell(ctx context.Context) error {
	return c.tasks.Run(ctx, c.sail("shell"), "Opening Sail shell")
}

// Bash opens bash in the application container.
func (c *Commands) Bash(ctx context.Context) error {
	return c.tasks.Run(ctx, c.sail("bash"), "Opening Sail bash")
}

// Tinker opens the interactive console.
func (c *Commands) Tinker(ctx context.Context) error {
	return c.tasks.Run(ctx, c.sail("tinker"), "Opening Sail tinker")
}

// Share publishes the application through a temporary public URL.
func (c *Commands) Share(ctx context.Context) error {
	return c.tasks.Run(ctx, c.sail("share"), "Sail share")
}

// Open opens the application in the browser.
func (c *Commands) Open(ctx context.Context) error {
	_, err := c.runner.Run(ctx, c.sail("open"))
	return err
}

// InstallSail adds laravel/sail with composer. Failures are reported to the user, not returned.
func (c *Commands) InstallSail(ctx context.Context, dev bool) {
	command := fmt.Sprintf("%s require laravel/sail", c.paths.Composer)
	if dev {
		command += " --dev"
	}
	c.tasks.RunWithProgress(ctx, command, "Installing Laravel Sail", false)
	c.refresh()
}

// RemoveSail removes laravel/sail with composer.
func (c *Commands) RemoveSail(ctx context.Context) {
	c.tasks.RunWithProgress(ctx, fmt.Sprintf("%s remove laravel/sail", c.paths.Composer), "Removing Laravel Sail", false)
	c.refresh()
}

// Publish publishes the Docker Compose file and updates .env using the host PHP interpreter.
func (c *Commands) Publish(ctx context.Context) {
	c.tasks.RunWithProgress(ctx, fmt.Sprintf("%s sail:install", c.paths.Artisan), "Publishing Docker Compose and Updating .env", true)
	c.refresh()
}

// Migrate runs database migrations inside the stack.
func (c *Commands) Migrate(ctx context.Context) {
	c.tasks.RunWithProgress(ctx, c.sail(c.paths.Artisan, "migrate"), "Running Sail Migrate", false)
}

// Delete stops the stack and removes laravel/sail.
func (c *Commands) Delete(ctx context.Context) error {
	if err := c.Down(ctx); err != nil {
		return err
	}
	c.RemoveSail(ctx)
	return nil
}

// RouteList returns the raw JSON route table from artisan.
func (c *Commands) RouteList(ctx context.Context) (string, error) {
	return c.runner.Run(ctx, c.sail(c.paths.Artisan, "route:list", "-v", "--json"))
}

// Action looks up a stack-wide command by the name the dashboard offers.
// Interactive commands (shell, bash, tinker, share, stats) need a terminal and
// are not available here.
func (c *Commands) Action(name string) (func(context.Context) error, bool) {
	switch name {
	case "up":
		return c.Up, true
	case "down":
		return c.Down, true
	case "restart":
		return c.Restart, true
	case "open":
		return c.Open, true
	case "migrate":
		return func(ctx context.Context) error {
			c.Migrate(ctx)
			return nil
		}, true
	case "publish":
		return func(ctx context.Context) error {
			c.Publish(ctx)
			return nil
		}, true
	case "install":
		return func(ctx context.Context) error {
			c.InstallSail(ctx, true)
			return nil
		}, true
	}
	return nil, false
}
