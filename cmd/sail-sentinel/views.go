package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/nholik/sail-sentinel/internal/health"
	"github.com/nholik/sail-sentinel/internal/poller"
	"github.com/nholik/sail-sentinel/internal/routes"
	"github.com/nholik/sail-sentinel/internal/shell"
	"github.com/nholik/sail-sentinel/internal/state"
	"github.com/nholik/sail-sentinel/internal/ui"
	"github.com/nholik/sail-sentinel/internal/view"
	"github.com/spf13/cobra"
)

const dockerNotRunning = "Docker is not running. Please start Docker to use Laravel Sail."

func viewCmds(a *app) []*cobra.Command {
	return []*cobra.Command{
		newPsCmd(a),
		newDashboardCmd(a),
		newRoutesCmd(a),
		newRefreshCmd(a),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List services with their ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.StatusTimeout)
			defer cancel()

			snapshot, err := a.statusClient().Ps(ctx)
			if err != nil {
				if shell.IsEngineUnavailable(err) {
					a.console.Warn(dockerNotRunning)
				}
				return err
			}
			if asJSON {
				return writeJSON(a.out, snapshot)
			}

			summary := health.Summarize(snapshot)
			fmt.Fprint(a.out, view.RenderNodes(view.BuildNodes(snapshot)))
			fmt.Fprintln(a.out, ui.Muted(fmt.Sprintf("%s: %d of %d running", summary.Status, summary.Running, summary.Total)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshot as JSON")
	return cmd
}

func newDashboardCmd(a *app) *cobra.Command {
	var asJSON, withTree bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the project status panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appState := state.NewAppState()
			writer, err := appState.Writer()
			if err != nil {
				return err
			}
			broadcaster := events.NewBroadcaster(a.component("broadcaster"))
			dashboard := view.NewDashboard(appState, broadcaster, a.workspace, a.component("dashboard"))
			defer dashboard.Dispose()
			tree := view.NewTree(appState, broadcaster, a.component("tree"))
			defer tree.Dispose()

			p := poller.New(a.component("poller"), a.cfg.PollInterval, a.statusClient(), writer, broadcaster,
				poller.WithTimeout(a.cfg.StatusTimeout))
			if err := p.Poll(cmd.Context()); err != nil {
				a.logger.Debug().Err(err).Msg("status poll failed")
			}

			if asJSON {
				payload := struct {
					view.DashboardState
					Tree []view.Node `json:"tree,omitempty"`
				}{DashboardState: dashboard.State()}
				if withTree {
					payload.Tree = tree.Nodes()
				}
				return writeJSON(a.out, payload)
			}
			fmt.Fprint(a.out, dashboard.Render())
			if withTree && dashboard.State().Phase == view.PhaseStatus {
				fmt.Fprintln(a.out)
				fmt.Fprint(a.out, tree.Render())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the dashboard state as JSON")
	cmd.Flags().BoolVar(&withTree, "tree", false, "Include the service tree")
	return cmd
}

func newRoutesCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		filter string
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the application's route list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			watcher := routes.NewWatcher(a.component("routes"), a.commands(), routes.WithInterval(a.cfg.RouteRefreshInterval))
			show := func() error {
				table := watcher.Table().Filter(filter)
				if asJSON {
					return writeJSON(a.out, table)
				}
				_, err := fmt.Fprint(a.out, table.Render())
				return err
			}

			if !watch {
				done := a.console.Begin("Loading route list")
				err := watcher.Refresh(cmd.Context())
				done()
				if err != nil {
					a.console.Error("The route list could not be generated")
					return err
				}
				return show()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			sub := watcher.OnDidChange(func() {
				if err := show(); err != nil {
					a.logger.Warn().Err(err).Msg("render route list failed")
				}
			})
			defer sub.Dispose()
			return watcher.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the route table as JSON")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only show routes containing this text")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep refreshing until interrupted")
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Ask the running watch process to poll now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			refresher, ok := a.watchRefresher().(*watchRefresher)
			if !ok {
				return errors.New("health port is disabled; the watch process cannot be reached")
			}
			if err := refresher.post(cmd.Context()); err != nil {
				return fmt.Errorf("watch process not reachable at %s: %w", refresher.url, err)
			}
			a.console.Success("Refresh requested")
			return nil
		},
	}
}
