package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nholik/sail-sentinel/internal/coordinator"
	"github.com/nholik/sail-sentinel/internal/logging"
	"github.com/nholik/sail-sentinel/internal/metrics"
	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/nholik/sail-sentinel/internal/server"
	"github.com/nholik/sail-sentinel/internal/task"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// refreshFunc adapts a func to sail.Refresher.
type refreshFunc func()

func (f refreshFunc) Fire() { f() }

// actionRunner runs one dashboard action at a time in the background.
type actionRunner struct {
	commands *sail.Commands
	logger   zerolog.Logger
	busy     atomic.Bool
}

func (r *actionRunner) start(name string) error {
	action, ok := r.commands.Action(name)
	if !ok {
		return fmt.Errorf("%w: %s", server.ErrUnknownAction, name)
	}
	if !r.busy.CompareAndSwap(false, true) {
		return errors.New("another action is still running")
	}
	go func() {
		defer r.busy.Store(false)
		r.logger.Info().Str("action", name).Msg("action started")
		if err := action(context.Background()); err != nil {
			r.logger.Error().Err(err).Str("action", name).Msg("action failed")
			return
		}
		r.logger.Info().Str("action", name).Msg("action finished")
	}()
	return nil
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		render       bool
		noRoutes     bool
		pollInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll service status and serve the live views",
		Long: `Poll service status on an interval, keep the service tree and dashboard
current, notify on service transitions and serve everything over HTTP:

  GET  /api/tree  /api/dashboard  /api/routes?q=
  POST /api/refresh  /api/actions/{up,down,restart,open,migrate,publish,install}
  GET  /healthz  /readyz  /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if pollInterval > 0 {
				cfg.PollInterval = pollInterval
			}
			logger := a.logger
			if !render {
				logger = logging.NewJSON(a.errOut, cfg.LogLevel)
			}
			logger = logger.With().Str("project", cfg.Project()).Logger()

			notifier, err := a.notifier()
			if err != nil {
				return err
			}
			m := metrics.New()

			var coord *coordinator.Coordinator
			refresher := refreshFunc(func() {
				if coord != nil {
					coord.Fire()
				}
			})
			tasks := a.taskRunner(a.errOut, a.errOut, task.WithOutcomes(m))
			commands := sail.NewCommands(tasks, a.shellRunner(), refresher, a.paths())
			actions := &actionRunner{commands: commands, logger: logging.Component(logger, "actions")}

			opts := []coordinator.Option{
				coordinator.WithNotifier(notifier),
				coordinator.WithStateStore(a.stateStore(), &sync.Mutex{}),
				coordinator.WithMetrics(m),
				coordinator.WithActions(actions.start),
			}
			if !noRoutes {
				opts = append(opts, coordinator.WithRouteSource(commands))
			}
			if render {
				opts = append(opts, coordinator.WithRenderTo(a.out))
			}

			coord, err = coordinator.New(logger, cfg, a.statusClient(), opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return coord.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "Re-render the dashboard and tree in the terminal on every change")
	cmd.Flags().BoolVar(&noRoutes, "no-routes", false, "Do not refresh the route list")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Override the status poll interval")
	return cmd
}
