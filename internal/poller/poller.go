// Package poller keeps the process-wide AppState in step with the Sail CLI.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nholik/sail-sentinel/internal/health"
	"github.com/nholik/sail-sentinel/internal/healthcheck"
	"github.com/nholik/sail-sentinel/internal/metrics"
	"github.com/nholik/sail-sentinel/internal/notify"
	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/nholik/sail-sentinel/internal/shell"
	"github.com/nholik/sail-sentinel/internal/state"
	"github.com/nholik/sail-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single status query.
const DefaultTimeout = 15 * time.Second

// ErrPollInFlight is returned by Poll when another poll has not finished yet.
var ErrPollInFlight = errors.New("status poll already in flight")

// outboxSize bounds the transition batches waiting for delivery while Run is active.
const outboxSize = 8

// Ticker is the minimal interface needed for driving the poll loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

// NewTimeTicker wraps a time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{ticker: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// StatusSource lists the project's services.
type StatusSource interface {
	Ps(ctx context.Context) (sail.Snapshot, error)
}

// Broadcaster is notified once after every poll.
type Broadcaster interface {
	Fire()
}

// Poller periodically queries service status and publishes it.
type Poller struct {
	logger        zerolog.Logger
	interval      time.Duration
	timeout       time.Duration
	tickerFactory func(time.Duration) Ticker
	source        StatusSource
	writer        *state.Writer
	broadcaster   Broadcaster
	inFlight      atomic.Bool
	again         atomic.Bool

	project    string
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	tracker    *healthcheck.Tracker
	stateStore state.Store
	stateMu    *sync.Mutex
	lastStates map[string]sail.RunState

	outbox     chan []transition.ServiceTransition
	delivering atomic.Bool
	notifyMu   sync.Mutex
}

// Option customizes poller behavior.
type Option func(*Poller)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(p *Poller) {
		p.tickerFactory = factory
	}
}

// WithTimeout bounds each status query.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Poller) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithProjectName labels transition notifications.
func WithProjectName(name string) Option {
	return func(p *Poller) {
		p.project = name
	}
}

// WithNotifier delivers detected transitions.
func WithNotifier(notifier notify.Notifier) Option {
	return func(p *Poller) {
		p.notifier = notifier
	}
}

// WithMetrics records poll metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithTracker records poll timing for health endpoints.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(p *Poller) {
		p.tracker = tracker
	}
}

// WithStateStore persists run states across restarts for transitions.
func WithStateStore(store state.Store, lock *sync.Mutex) Option {
	return func(p *Poller) {
		p.stateStore = store
		p.stateMu = lock
	}
}

// New constructs a Poller. writer is the AppState's single write handle.
func New(logger zerolog.Logger, interval time.Duration, source StatusSource, writer *state.Writer, broadcaster Broadcaster, opts ...Option) *Poller {
	p := &Poller{
		logger:        logger,
		interval:      interval,
		timeout:       DefaultTimeout,
		source:        source,
		writer:        writer,
		broadcaster:   broadcaster,
		tickerFactory: NewTimeTicker,
		outbox:        make(chan []transition.ServiceTransition, outboxSize),
	}

	for _, opt := range opts {
		opt(p)
	}
	if p.stateStore != nil && p.stateMu == nil {
		p.stateMu = &sync.Mutex{}
	}

	return p
}

// Run polls immediately, then once per interval, until ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	if p.notifier != nil {
		var wg sync.WaitGroup
		wg.Add(1)
		p.delivering.Store(true)
		go func() {
			defer wg.Done()
			p.deliverLoop(ctx)
		}()
		defer func() {
			p.delivering.Store(false)
			wg.Wait()
		}()
	}

	// Run immediately on startup
	p.logPollError(p.Poll(ctx))

	ticker := p.tickerFactory(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("poller stopped")
			return nil
		case <-ticker.C():
			p.logPollError(p.Poll(ctx))
		}
	}
}

func (p *Poller) logPollError(err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrPollInFlight):
		p.logger.Debug().Msg("poll skipped, previous poll still running")
	case errors.Is(err, context.Canceled):
	default:
		p.logger.Warn().Err(err).Msg("status poll failed")
	}
}

// Poll runs one status query and commits its result. Whatever the outcome,
// AppState leaves the loading phase and the broadcaster fires exactly once.
// Overlapping calls return ErrPollInFlight without touching state.
// Transition notifications are sent after the in-flight guard is released;
// while Run is active they are queued for its delivery worker.
func (p *Poller) Poll(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	transitions, err := p.poll(ctx)
	p.inFlight.Store(false)

	if len(transitions) > 0 {
		p.dispatch(ctx, transitions)
	}
	if p.again.CompareAndSwap(true, false) {
		return p.Poll(ctx)
	}
	return err
}

// Refresh polls now. When a poll is already running, one more poll follows
// it, so the views reflect anything that changed before Refresh was called.
func (p *Poller) Refresh(ctx context.Context) error {
	for {
		err := p.Poll(ctx)
		if !errors.Is(err, ErrPollInFlight) {
			return err
		}
		p.again.Store(true)
		if p.inFlight.Load() {
			// The running poll checks the flag after releasing the guard.
			return nil
		}
		if !p.again.CompareAndSwap(true, false) {
			return nil
		}
	}
}

func (p *Poller) poll(ctx context.Context) ([]transition.ServiceTransition, error) {
	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	snapshot, err := p.source.Ps(pollCtx)
	cancel()
	duration := time.Since(start)
	p.metrics.ObservePollDuration(duration)

	if err != nil {
		available := !shell.IsEngineUnavailable(err)
		p.writer.Commit(nil, available)
		p.tracker.RecordFailure(err, available)
		p.metrics.IncPollErrors(failureReason(err))
		p.recordSnapshotMetrics(sail.Snapshot{})
		p.broadcaster.Fire()
		return nil, stageErr("poll status", err)
	}

	p.writer.Commit(snapshot, true)
	p.tracker.RecordCycle(duration, len(snapshot))
	p.recordSnapshotMetrics(snapshot)
	p.metrics.SetLastSuccessfulPollTimestamp(time.Now())
	p.broadcaster.Fire()

	p.logger.Debug().
		Int("services", len(snapshot)).
		Int("running", snapshot.Running()).
		Dur("duration", duration).
		Msg("status polled")

	transitions, err := p.trackTransitions(ctx, snapshot)
	if err != nil {
		p.logger.Warn().Err(err).Msg("transition tracking failed")
	}
	return transitions, nil
}

// dispatch hands transitions to the delivery worker, or delivers them inline
// when no worker is running.
func (p *Poller) dispatch(ctx context.Context, transitions []transition.ServiceTransition) {
	if p.notifier == nil {
		return
	}
	if !p.delivering.Load() {
		p.deliver(ctx, transitions)
		return
	}
	select {
	case p.outbox <- transitions:
	default:
		p.logger.Warn().Int("transitions", len(transitions)).Msg("notification queue full, dropping transitions")
	}
}

func (p *Poller) deliverLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case transitions := <-p.outbox:
			p.deliver(ctx, transitions)
		}
	}
}

// deliver sends one batch at a time.
func (p *Poller) deliver(ctx context.Context, transitions []transition.ServiceTransition) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if err := p.notifier.Notify(ctx, p.project, transitions); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn().Err(stageErr("notify transitions", err)).Msg("transition notification failed")
	}
}

func (p *Poller) recordSnapshotMetrics(snapshot sail.Snapshot) {
	if p.metrics == nil {
		return
	}
	counts := map[string]int{}
	for _, record := range snapshot {
		counts[string(record.RunState)]++
	}
	p.metrics.SetServices(counts)
	p.metrics.SetStackStatus(string(health.Classify(snapshot)))
}

func failureReason(err error) string {
	var parseErr *sail.ParseError
	switch {
	case shell.IsEngineUnavailable(err):
		return "engine_unavailable"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "command"
	}
}

// trackTransitions detects changes against the previous run states, records
// the new ones and logs each change.
func (p *Poller) trackTransitions(ctx context.Context, snapshot sail.Snapshot) ([]transition.ServiceTransition, error) {
	current := snapshot.RunStates()

	var previous map[string]sail.RunState
	if p.stateStore == nil {
		previous = p.lastStates
		p.lastStates = current
	} else {
		err := p.withStateLock(func() error {
			loaded, err := p.stateStore.Load(ctx)
			if err != nil {
				return err
			}
			previous = loaded.Services
			loaded.Services = current
			loaded.UpdatedAt = time.Now().UTC()
			return p.stateStore.Save(ctx, loaded)
		})
		if err != nil {
			return nil, stageErr("persist state", err)
		}
	}

	transitions := transition.DetectServiceTransitions(previous, snapshot)
	if len(transitions) == 0 {
		return nil, nil
	}

	for _, change := range transitions {
		event := p.logger.Info()
		switch change.Current {
		case "", sail.RunStateExited:
			event = p.logger.Warn()
		}
		event.
			Str("service", change.Name).
			Str("previous_state", string(change.Previous)).
			Str("current_state", string(change.Current)).
			Str("image", change.Image).
			Msg("service transition detected")

		label := string(change.Current)
		if change.Removed() {
			label = "removed"
		}
		p.metrics.IncTransitions(label)
	}

	return transitions, nil
}

func (p *Poller) withStateLock(fn func() error) error {
	if p.stateMu == nil {
		return fn()
	}
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return fn()
}
