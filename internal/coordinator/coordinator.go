// Package coordinator wires the watch process together: one AppState, one
// broadcaster, the status poller that writes to them and the views that read
// from them.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/nholik/sail-sentinel/internal/config"
	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/nholik/sail-sentinel/internal/healthcheck"
	"github.com/nholik/sail-sentinel/internal/metrics"
	"github.com/nholik/sail-sentinel/internal/notify"
	"github.com/nholik/sail-sentinel/internal/poller"
	"github.com/nholik/sail-sentinel/internal/routes"
	"github.com/nholik/sail-sentinel/internal/server"
	"github.com/nholik/sail-sentinel/internal/state"
	"github.com/nholik/sail-sentinel/internal/ui"
	"github.com/nholik/sail-sentinel/internal/view"
	"github.com/rs/zerolog"
)

// Coordinator owns the process-wide state and the workers around it.
type Coordinator struct {
	logger      zerolog.Logger
	cfg         config.Config
	app         *state.AppState
	broadcaster *events.Broadcaster
	poller      *poller.Poller
	tree        *view.Tree
	dashboard   *view.Dashboard
	routes      *routes.Watcher
	tracker     *healthcheck.Tracker
	metrics     *metrics.Metrics
	renderTo    io.Writer
	actions     func(name string) error

	pollerOpts  []poller.Option
	routeSource routes.Source
	tickers     func(time.Duration) poller.Ticker

	workerErrors map[string]error
	mu           sync.RWMutex
}

// Option customizes the coordinator.
type Option func(*Coordinator)

// WithNotifier delivers service transitions.
func WithNotifier(notifier notify.Notifier) Option {
	return func(c *Coordinator) {
		c.pollerOpts = append(c.pollerOpts, poller.WithNotifier(notifier))
	}
}

// WithStateStore persists run states between restarts.
func WithStateStore(store state.Store, lock *sync.Mutex) Option {
	return func(c *Coordinator) {
		c.pollerOpts = append(c.pollerOpts, poller.WithStateStore(store, lock))
	}
}

// WithMetrics records poll and transition metrics and serves them.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithRouteSource enables the route list watcher.
func WithRouteSource(source routes.Source) Option {
	return func(c *Coordinator) {
		c.routeSource = source
	}
}

// WithRenderTo re-renders the dashboard and tree to w on every change.
func WithRenderTo(w io.Writer) Option {
	return func(c *Coordinator) {
		c.renderTo = w
	}
}

// WithActions serves dashboard actions over HTTP through handler.
func WithActions(handler func(name string) error) Option {
	return func(c *Coordinator) {
		c.actions = handler
	}
}

// WithTickerFactory overrides the tickers of the poller and route watcher.
func WithTickerFactory(factory func(time.Duration) poller.Ticker) Option {
	return func(c *Coordinator) {
		c.tickers = factory
	}
}

// New builds the coordinator around source, the Sail status query.
func New(logger zerolog.Logger, cfg config.Config, source poller.StatusSource, opts ...Option) (*Coordinator, error) {
	dir, err := cfg.WorkspaceDir()
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		logger:       logger,
		cfg:          cfg,
		app:          state.NewAppState(),
		broadcaster:  events.NewBroadcaster(logger.With().Str("component", "broadcaster").Logger()),
		tracker:      healthcheck.NewTracker(),
		workerErrors: make(map[string]error),
	}
	for _, opt := range opts {
		opt(c)
	}

	writer, err := c.app.Writer()
	if err != nil {
		return nil, err
	}

	pollerOpts := append([]poller.Option{
		poller.WithTimeout(cfg.StatusTimeout),
		poller.WithProjectName(cfg.Project()),
		poller.WithMetrics(c.metrics),
		poller.WithTracker(c.tracker),
	}, c.pollerOpts...)
	if c.tickers != nil {
		pollerOpts = append(pollerOpts, poller.WithTickerFactory(c.tickers))
	}
	c.poller = poller.New(
		logger.With().Str("component", "poller").Logger(),
		cfg.PollInterval,
		source,
		writer,
		c.broadcaster,
		pollerOpts...,
	)

	c.tree = view.NewTree(c.app, c.broadcaster, logger.With().Str("component", "tree").Logger())
	c.dashboard = view.NewDashboard(c.app, c.broadcaster, dir, logger.With().Str("component", "dashboard").Logger())

	if c.routeSource != nil {
		routeOpts := []routes.Option{
			routes.WithInterval(cfg.RouteRefreshInterval),
			routes.WithTimeout(cfg.StatusTimeout),
		}
		if c.tickers != nil {
			routeOpts = append(routeOpts, routes.WithTickerFactory(c.tickers))
		}
		c.routes = routes.NewWatcher(logger.With().Str("component", "routes").Logger(), c.routeSource, routeOpts...)
	}

	return c, nil
}

// Run starts the HTTP surface and every worker, and blocks until ctx is
// canceled and all workers have stopped.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().
		Str("project", c.cfg.Project()).
		Dur("poll_interval", c.cfg.PollInterval).
		Bool("routes", c.routes != nil).
		Msg("starting coordinator")

	api := server.API{
		Tree:      c.tree,
		Dashboard: c.dashboard,
		Refresh:   c.Fire,
		Action:    c.actions,
	}
	if c.routes != nil {
		api.Routes = c.routes
	}
	server.Start(ctx, c.logger, server.Config{
		PollInterval: c.cfg.PollInterval,
		Tracker:      c.tracker,
		Metrics:      c.metrics,
		Host:         c.cfg.ListenHost,
		HealthPort:   c.cfg.HealthPort,
		MetricsPort:  c.cfg.MetricsPort,
		API:          api,
	})

	var wg sync.WaitGroup
	c.spawn(ctx, &wg, "poller", c.poller.Run)
	if c.routes != nil {
		c.spawn(ctx, &wg, "routes", c.routes.Run)
	}
	if c.renderTo != nil {
		c.spawn(ctx, &wg, "render", c.render)
	}

	wg.Wait()
	c.tree.Dispose()
	c.dashboard.Dispose()
	c.logger.Info().Msg("all workers stopped")

	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.workerErrors))
	for name := range c.workerErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		c.logger.Error().Err(c.workerErrors[name]).Str("worker", name).Msg("worker error")
		errs = append(errs, fmt.Errorf("%s: %w", name, c.workerErrors[name]))
	}
	return errors.Join(errs...)
}

func (c *Coordinator) spawn(ctx context.Context, wg *sync.WaitGroup, name string, run func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := run(ctx); err != nil {
			c.recordError(name, err)
			return
		}
		c.logger.Debug().Str("worker", name).Msg("worker exited cleanly")
	}()
}

func (c *Coordinator) recordError(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workerErrors[name] = err
}

// Refresh polls now. When a poll is already running, another one follows it.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.poller.Refresh(ctx)
}

// Fire requests a poll without waiting for it.
func (c *Coordinator) Fire() {
	go func() {
		if err := c.Refresh(context.Background()); err != nil {
			c.logger.Debug().Err(err).Msg("requested refresh failed")
		}
	}()
}

func (c *Coordinator) render(ctx context.Context) error {
	var mu sync.Mutex
	draw := func() {
		mu.Lock()
		defer mu.Unlock()
		_, _ = io.WriteString(c.renderTo, "\n"+ui.Muted(time.Now().Format(time.TimeOnly))+"\n"+c.dashboard.Render()+"\n"+c.tree.Render())
	}
	sub := c.dashboard.OnDidChange(draw)
	defer sub.Dispose()
	<-ctx.Done()
	return nil
}

// State returns the read side of the process-wide state.
func (c *Coordinator) State() state.Reader {
	return c.app
}

// Tree returns the service tree view.
func (c *Coordinator) Tree() *view.Tree {
	return c.tree
}

// Dashboard returns the dashboard view.
func (c *Coordinator) Dashboard() *view.Dashboard {
	return c.dashboard
}

// Tracker returns the poll tracker.
func (c *Coordinator) Tracker() *healthcheck.Tracker {
	return c.tracker
}
