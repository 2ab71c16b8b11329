package main

import (
	"context"

	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/spf13/cobra"
)

func stackCmd(a *app, use, short string, run func(*sail.Commands, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(a.commands(), cmd.Context())
		},
	}
}

func serviceCmd(a *app, use, short string, run func(*sail.Commands, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <service>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a.commands(), cmd.Context(), args[0])
		},
	}
}

func stackCmds(a *app) []*cobra.Command {
	return []*cobra.Command{
		stackCmd(a, "up", "Start every service in the background", (*sail.Commands).Up),
		stackCmd(a, "down", "Stop and remove every service", (*sail.Commands).Down),
		stackCmd(a, "restart", "Restart the stack", (*sail.Commands).Restart),
		stackCmd(a, "open", "Open the application in the browser", (*sail.Commands).Open),
		stackCmd(a, "shell", "Open a shell in the application container", (*sail.Commands).Shell),
		stackCmd(a, "bash", "Open bash in the application container", (*sail.Commands).Bash),
		stackCmd(a, "tinker", "Start a Tinker session", (*sail.Commands).Tinker),
		stackCmd(a, "share", "Share the application through a public URL", (*sail.Commands).Share),
	}
}

func serviceCmds(a *app) []*cobra.Command {
	return []*cobra.Command{
		serviceCmd(a, "start", "Start a service", (*sail.Commands).Start),
		serviceCmd(a, "stop", "Stop a service", (*sail.Commands).Stop),
		serviceCmd(a, "kill", "Kill a service", (*sail.Commands).Kill),
		serviceCmd(a, "pause", "Pause a service", (*sail.Commands).Pause),
		serviceCmd(a, "unpause", "Resume a paused service", (*sail.Commands).Unpause),
		serviceCmd(a, "stats", "Stream resource usage of a service", (*sail.Commands).Stats),
	}
}
