package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd(a *app) *cobra.Command {
	var (
		workspace string
		logLevel  string
	)

	root := &cobra.Command{
		Use:   "sail-sentinel",
		Short: "Drive and watch a Laravel Sail stack",
		Long: `sail-sentinel runs Laravel Sail, Composer and Artisan commands for the
project in the workspace directory and keeps a live view of its services.

Run "sail-sentinel watch" to poll service status, serve the tree, dashboard
and route list over HTTP and notify on service transitions.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(workspace, logLevel)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetVersionTemplate(`{{printf "sail-sentinel version %s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Project directory (default from SAIL_WORKSPACE or the current directory)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddGroup(
		&cobra.Group{ID: "stack", Title: "Stack commands:"},
		&cobra.Group{ID: "service", Title: "Service commands:"},
		&cobra.Group{ID: "project", Title: "Project commands:"},
		&cobra.Group{ID: "view", Title: "Views:"},
	)

	for _, cmd := range stackCmds(a) {
		cmd.GroupID = "stack"
		root.AddCommand(cmd)
	}
	for _, cmd := range serviceCmds(a) {
		cmd.GroupID = "service"
		root.AddCommand(cmd)
	}
	for _, cmd := range projectCmds(a) {
		cmd.GroupID = "project"
		root.AddCommand(cmd)
	}
	for _, cmd := range viewCmds(a) {
		cmd.GroupID = "view"
		root.AddCommand(cmd)
	}
	root.AddCommand(newWatchCmd(a), newDoctorCmd(a))

	return root
}
