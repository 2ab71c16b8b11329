package routes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/nholik/sail-sentinel/internal/poller"
	"github.com/rs/zerolog"
)

// DefaultInterval is how often the route list is refreshed.
const DefaultInterval = 10 * time.Second

// DefaultTimeout bounds a single route:list invocation.
const DefaultTimeout = 15 * time.Second

// ErrRefreshInFlight is returned when a refresh is already running.
var ErrRefreshInFlight = errors.New("route refresh already in flight")

// Source returns artisan's raw JSON route list.
type Source interface {
	RouteList(ctx context.Context) (string, error)
}

// Watcher keeps the latest route table.
type Watcher struct {
	logger        zerolog.Logger
	source        Source
	interval      time.Duration
	timeout       time.Duration
	tickerFactory func(time.Duration) poller.Ticker
	changed       *events.Broadcaster
	inFlight      atomic.Bool

	mu        sync.RWMutex
	table     Table
	lastErr   error
	updatedAt time.Time
}

// Option customizes watcher behavior.
type Option func(*Watcher)

// WithInterval sets the refresh interval.
func WithInterval(interval time.Duration) Option {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithTimeout bounds each route list query.
func WithTimeout(timeout time.Duration) Option {
	return func(w *Watcher) {
		if timeout > 0 {
			w.timeout = timeout
		}
	}
}

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) poller.Ticker) Option {
	return func(w *Watcher) {
		w.tickerFactory = factory
	}
}

// NewWatcher constructs a Watcher.
func NewWatcher(logger zerolog.Logger, source Source, opts ...Option) *Watcher {
	w := &Watcher{
		logger:   logger,
		source:   source,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		changed:  events.NewBroadcaster(logger),
		tickerFactory: func(d time.Duration) poller.Ticker {
			return poller.NewTimeTicker(d)
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run refreshes immediately, then once per interval, until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logRefreshError(w.Refresh(ctx))

	ticker := w.tickerFactory(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("route watcher stopped")
			return nil
		case <-ticker.C():
			w.logRefreshError(w.Refresh(ctx))
		}
	}
}

func (w *Watcher) logRefreshError(err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrRefreshInFlight):
		w.logger.Debug().Msg("route refresh skipped, previous refresh still running")
	case errors.Is(err, context.Canceled):
	default:
		w.logger.Warn().Err(err).Msg("the route list could not be generated")
	}
}

// Refresh fetches and parses the route list. On failure the previous table
// is kept and the error is remembered.
func (w *Watcher) Refresh(ctx context.Context) error {
	if !w.inFlight.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer w.inFlight.Store(false)

	listCtx, cancel := context.WithTimeout(ctx, w.timeout)
	raw, err := w.source.RouteList(listCtx)
	cancel()
	if err == nil {
		var table Table
		table, err = Parse([]byte(raw))
		if err == nil {
			w.mu.Lock()
			w.table = table
			w.lastErr = nil
			w.updatedAt = time.Now().UTC()
			w.mu.Unlock()
			w.logger.Debug().Int("routes", len(table.Rows)).Msg("route list refreshed")
			w.changed.Fire()
			return nil
		}
	}

	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
	return err
}

// Table returns the latest route table.
func (w *Watcher) Table() Table {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.table
}

// Err returns the error of the last refresh, if it failed.
func (w *Watcher) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// UpdatedAt returns when the table was last replaced.
func (w *Watcher) UpdatedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.updatedAt
}

// OnDidChange subscribes to table replacements.
func (w *Watcher) OnDidChange(handler func()) events.Disposable {
	return w.changed.Subscribe(handler)
}
