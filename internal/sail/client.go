package sail

import (
	"context"
	"fmt"

	"github.com/nholik/sail-sentinel/internal/shell"
)

// StatusClient queries service status through the Sail CLI.
type StatusClient struct {
	runner   shell.Runner
	sailPath string
}

// NewStatusClient returns a StatusClient invoking sailPath via runner.
func NewStatusClient(runner shell.Runner, sailPath string) *StatusClient {
	return &StatusClient{runner: runner, sailPath: sailPath}
}

// StatusCommand is the command line used for status queries.
func (c *StatusClient) StatusCommand() string {
	return fmt.Sprintf("%s ps --all --format json", c.sailPath)
}

// Ps runs the status query and parses its output. Empty output is a valid,
// empty snapshot.
func (c *StatusClient) Ps(ctx context.Context) (Snapshot, error) {
	out, err := c.runner.Run(ctx, c.StatusCommand())
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(out)
}
