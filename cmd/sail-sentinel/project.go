package main

import (
	"errors"

	"github.com/nholik/sail-sentinel/internal/state"
	"github.com/spf13/cobra"
)

const (
	sailInstalledKey     = "sail-installed"
	sailInstalledMessage = `Sail scaffolding installed successfully. You may run your Docker containers using Sail's "up" command.`
)

func projectCmds(a *app) []*cobra.Command {
	return []*cobra.Command{
		newInstallCmd(a),
		{
			Use:   "remove",
			Short: "Remove laravel/sail with Composer",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a.commands().RemoveSail(cmd.Context())
				return nil
			},
		},
		{
			Use:   "publish",
			Short: "Publish the Docker Compose file and update .env",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a.commands().Publish(cmd.Context())
				a.announceInstalled(cmd)
				return nil
			},
		},
		{
			Use:   "migrate",
			Short: "Run database migrations inside the stack",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a.commands().Migrate(cmd.Context())
				return nil
			},
		},
		newDeleteCmd(a),
	}
}

func newInstallCmd(a *app) *cobra.Command {
	var dev, publish, migrate bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install laravel/sail with Composer",
		Long: `Install laravel/sail with Composer. With --publish the Docker Compose file
is published and .env updated afterwards; --migrate then runs the database
migrations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if migrate && !publish {
				return errors.New("--migrate requires --publish")
			}
			commands := a.commands()
			commands.InstallSail(cmd.Context(), dev)
			if !publish {
				return nil
			}
			commands.Publish(cmd.Context())
			a.announceInstalled(cmd)
			if migrate {
				commands.Migrate(cmd.Context())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", true, "Add laravel/sail to require-dev")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the Docker Compose file and update .env")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Run database migrations after publishing")
	return cmd
}

// announceInstalled shows the scaffolding message the first time Sail is
// published in this workspace.
func (a *app) announceInstalled(cmd *cobra.Command) {
	first, err := state.MarkShownOnce(cmd.Context(), a.stateStore(), sailInstalledKey)
	if err != nil {
		a.logger.Warn().Err(err).Msg("could not record shown message")
		return
	}
	if first {
		a.console.Info(sailInstalledMessage)
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Stop the stack and remove laravel/sail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("delete stops every service and removes laravel/sail; pass --yes to confirm")
			}
			return a.commands().Delete(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}
