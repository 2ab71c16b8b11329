package view

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nholik/sail-sentinel/internal/compose"
	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/nholik/sail-sentinel/internal/health"
	"github.com/nholik/sail-sentinel/internal/project"
	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/nholik/sail-sentinel/internal/state"
	"github.com/nholik/sail-sentinel/internal/ui"
	"github.com/rs/zerolog"
)

// Phase is the top-level dashboard state.
type Phase string

const (
	PhaseLoading             Phase = "loading"
	PhaseDockerUnavailable   Phase = "docker-unavailable"
	PhaseNotAProject         Phase = "not-a-project"
	PhaseToolingNotInstalled Phase = "tooling-not-installed"
	PhaseStatus              Phase = "status"
)

// DashboardState is everything the dashboard shows.
type DashboardState struct {
	Phase           Phase           `json:"phase"`
	Summary         *health.Summary `json:"summary,omitempty"`
	ComposeFile     string          `json:"compose_file,omitempty"`
	ComposePresent  bool            `json:"compose_present"`
	MissingServices []string        `json:"missing_services,omitempty"`
	Actions         []string        `json:"actions,omitempty"`
	Terminal        []string        `json:"terminal,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ComputeDashboard applies the phase precedence: loading, then engine
// availability, then project detection, then tooling, then status.
func ComputeDashboard(loading, dockerAvailable bool, info project.Info, snapshot sail.Snapshot, declared compose.DeclaredServices) DashboardState {
	switch {
	case loading:
		return DashboardState{Phase: PhaseLoading}
	case !dockerAvailable:
		return DashboardState{Phase: PhaseDockerUnavailable}
	case !info.IsLaravel:
		return DashboardState{Phase: PhaseNotAProject}
	case !info.SailInstalled:
		return DashboardState{Phase: PhaseToolingNotInstalled, Actions: []string{"install"}}
	}

	summary := health.Summarize(snapshot)
	out := DashboardState{
		Phase:          PhaseStatus,
		Summary:        &summary,
		ComposeFile:    info.ComposeFile,
		ComposePresent: info.ComposeFile != "",
	}

	present := make(map[string]struct{}, len(snapshot))
	for _, record := range snapshot {
		present[record.Name] = struct{}{}
	}
	for _, name := range declared.Names() {
		if _, ok := present[name]; !ok {
			out.MissingServices = append(out.MissingServices, name)
		}
	}

	switch {
	case !out.ComposePresent:
		out.Actions = []string{"publish"}
	case summary.Status == health.StatusStopped:
		out.Actions = []string{"up"}
	default:
		out.Actions = []string{"open", "down", "restart", "migrate"}
		out.Terminal = []string{"shell", "bash", "tinker", "share"}
	}
	return out
}

// DetectFunc inspects the workspace.
type DetectFunc func(dir string) (project.Info, error)

// Dashboard is the status panel view.
type Dashboard struct {
	reader  state.Reader
	dir     string
	detect  DetectFunc
	cache   *compose.Cache
	logger  zerolog.Logger
	changed *events.Broadcaster
	sub     events.Disposable

	mu      sync.RWMutex
	current DashboardState
}

// NewDashboard builds the dashboard for the workspace dir and keeps it
// converged with every broadcast until Dispose.
func NewDashboard(reader state.Reader, broadcaster Subscriber, dir string, logger zerolog.Logger) *Dashboard {
	d := &Dashboard{
		reader:  reader,
		dir:     dir,
		detect:  project.Detect,
		cache:   &compose.Cache{},
		logger:  logger,
		changed: events.NewBroadcaster(logger),
	}
	d.rebuild()
	d.sub = broadcaster.Subscribe(func() {
		d.rebuild()
		d.changed.Fire()
	})
	return d
}

func (d *Dashboard) rebuild() {
	info, err := d.detect(d.dir)
	if err != nil {
		d.logger.Warn().Err(err).Str("dir", d.dir).Msg("project detection failed")
	}

	var declared compose.DeclaredServices
	if info.ComposeFile != "" && !d.reader.Loading() {
		env, err := project.Env(d.dir)
		if err != nil {
			d.logger.Warn().Err(err).Msg("read project .env failed")
		}
		declared, err = d.cache.Load(context.Background(), info.ComposeFile, env)
		if err != nil {
			d.logger.Warn().Err(err).Str("compose_file", info.ComposeFile).Msg("compose file parse failed")
		}
	}

	next := ComputeDashboard(d.reader.Loading(), d.reader.DockerAvailable(), info, d.reader.Snapshot(), declared)
	next.UpdatedAt = d.reader.UpdatedAt()

	d.mu.Lock()
	d.current = next
	d.mu.Unlock()
	d.logger.Debug().Str("phase", string(next.Phase)).Msg("dashboard rebuilt")
}

// State returns the current dashboard state.
func (d *Dashboard) State() DashboardState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// OnDidChange subscribes to dashboard rebuilds.
func (d *Dashboard) OnDidChange(handler func()) events.Disposable {
	return d.changed.Subscribe(handler)
}

// Render draws the dashboard for a terminal.
func (d *Dashboard) Render() string {
	return RenderDashboard(d.State())
}

// Dispose stops following the broadcaster.
func (d *Dashboard) Dispose() {
	if d.sub != nil {
		d.sub.Dispose()
	}
}

// RenderDashboard draws a dashboard state.
func RenderDashboard(s DashboardState) string {
	switch s.Phase {
	case PhaseLoading:
		return ui.InfoMsg("Loading…") + "\n"
	case PhaseDockerUnavailable:
		return ui.ErrorMsg("Docker is not running. Please start Docker to use Laravel Sail.") + "\n"
	case PhaseNotAProject:
		return ui.InfoMsg("This isn't a Laravel project.") + "\n"
	case PhaseToolingNotInstalled:
		return ui.WarnMsg("Laravel Sail is not installed in this project.") + "\n" +
			ui.Muted("  Run `sail-sentinel install` to add it.") + "\n"
	}

	var sb strings.Builder
	status := "UNKNOWN"
	statusText := ui.Muted(status)
	if s.Summary != nil {
		status = strings.ToUpper(string(s.Summary.Status))
		switch s.Summary.Status {
		case health.StatusWorking:
			statusText = ui.Success(status)
		case health.StatusWarning:
			statusText = ui.Warn(status)
		default:
			statusText = ui.Error(status)
		}
	}

	composeText := ui.Error("NOT FOUND")
	if s.ComposePresent {
		composeText = ui.Success("EXISTS")
	}

	pairs := []ui.Pair{
		ui.KV("Sail status", statusText),
		ui.KV("Docker Compose file", composeText),
	}
	if s.Summary != nil {
		pairs = append(pairs, ui.KV("Services", fmt.Sprintf("%d running, %d paused, %d exited",
			s.Summary.Running, s.Summary.Paused, s.Summary.Exited)))
	}
	if len(s.MissingServices) > 0 {
		pairs = append(pairs, ui.KV("Not created", ui.Warn(strings.Join(s.MissingServices, ", "))))
	}
	if len(s.Actions) > 0 {
		pairs = append(pairs, ui.KV("Actions", ui.Accent(strings.Join(s.Actions, " · "))))
	}
	if len(s.Terminal) > 0 {
		pairs = append(pairs, ui.KV("In a terminal", ui.Muted("sail-sentinel "+strings.Join(s.Terminal, " | "))))
	}
	sb.WriteString(ui.KeyValues("", pairs...))
	return sb.String()
}
