package view

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nholik/sail-sentinel/internal/compose"
	"github.com/nholik/sail-sentinel/internal/events"
	"github.com/nholik/sail-sentinel/internal/health"
	"github.com/nholik/sail-sentinel/internal/project"
	"github.com/nholik/sail-sentinel/internal/sail"
	"github.com/rs/zerolog"
)

func TestComputeDashboardPrecedence(t *testing.T) {
	installed := project.Info{IsLaravel: true, SailInstalled: true, ComposeFile: "docker-compose.yml"}

	tests := []struct {
		name            string
		loading         bool
		dockerAvailable bool
		info            project.Info
		want            Phase
	}{
		{name: "loading wins", loading: true, dockerAvailable: false, info: project.Info{}, want: PhaseLoading},
		{name: "docker unavailable", dockerAvailable: false, info: project.Info{}, want: PhaseDockerUnavailable},
		{name: "not laravel", dockerAvailable: true, info: project.Info{}, want: PhaseNotAProject},
		{name: "sail missing", dockerAvailable: true, info: project.Info{IsLaravel: true}, want: PhaseToolingNotInstalled},
		{name: "status", dockerAvailable: true, info: installed, want: PhaseStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDashboard(tt.loading, tt.dockerAvailable, tt.info, nil, nil)
			if got.Phase != tt.want {
				t.Fatalf("expected phase %s, got %s", tt.want, got.Phase)
			}
			if tt.want != PhaseStatus && got.Summary != nil {
				t.Fatalf("expected no summary outside status phase")
			}
		})
	}
}

func TestComputeDashboardActions(t *testing.T) {
	info := project.Info{IsLaravel: true, SailInstalled: true, ComposeFile: "docker-compose.yml"}

	stopped := ComputeDashboard(false, true, info, nil, nil)
	if stopped.Summary.Status != health.StatusStopped {
		t.Fatalf("expected stopped, got %s", stopped.Summary.Status)
	}
	if !reflect.DeepEqual(stopped.Actions, []string{"up"}) {
		t.Fatalf("unexpected stopped actions: %v", stopped.Actions)
	}

	running := ComputeDashboard(false, true, info, sail.Snapshot{{Name: "app", RunState: sail.RunStateRunning}}, nil)
	if running.Summary.Status != health.StatusWorking {
		t.Fatalf("expected working, got %s", running.Summary.Status)
	}
	if !reflect.DeepEqual(running.Actions, []string{"open", "down", "restart", "migrate"}) {
		t.Fatalf("unexpected running actions: %v", running.Actions)
	}
	if !reflect.DeepEqual(running.Terminal, []string{"shell", "bash", "tinker", "share"}) {
		t.Fatalf("unexpected terminal commands: %v", running.Terminal)
	}

	noCompose := ComputeDashboard(false, true, project.Info{IsLaravel: true, SailInstalled: true}, nil, nil)
	if noCompose.ComposePresent {
		t.Fatalf("expected compose file to be absent")
	}
	if !reflect.DeepEqual(noCompose.Actions, []string{"publish"}) {
		t.Fatalf("unexpected actions without compose file: %v", noCompose.Actions)
	}
}

func TestComputeDashboardMissingServices(t *testing.T) {
	info := project.Info{IsLaravel: true, SailInstalled: true, ComposeFile: "docker-compose.yml"}
	snapshot := sail.Snapshot{{Name: "laravel.test", RunState: sail.RunStateRunning}}
	declared := compose.DeclaredServices{{Name: "laravel.test"}, {Name: "mysql"}, {Name: "redis"}}

	got := ComputeDashboard(false, true, info, snapshot, declared)
	if !reflect.DeepEqual(got.MissingServices, []string{"mysql", "redis"}) {
		t.Fatalf("unexpected missing services: %v", got.MissingServices)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDashboardFollowsState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "composer.json"), `{"require":{"laravel/framework":"^11.0"},"require-dev":{"laravel/sail":"^1.26"}}`)
	writeFile(t, filepath.Join(dir, "docker-compose.yml"), "services:\n  laravel.test:\n    image: sail-8.3/app\n  mysql:\n    image: mysql/mysql-server:8.0\n")

	reader := &fakeReader{dockerAvailable: true, loading: true}
	broadcaster := events.NewBroadcaster(zerolog.Nop())
	dashboard := NewDashboard(reader, broadcaster, dir, zerolog.Nop())
	defer dashboard.Dispose()

	if dashboard.State().Phase != PhaseLoading {
		t.Fatalf("expected loading before first poll, got %s", dashboard.State().Phase)
	}

	changes := 0
	dashboard.OnDidChange(func() { changes++ })

	reader.loading = false
	reader.snapshot = sail.Snapshot{{Name: "laravel.test", RunState: sail.RunStateRunning}}
	broadcaster.Fire()

	state := dashboard.State()
	if changes != 1 {
		t.Fatalf("expected one change notification, got %d", changes)
	}
	if state.Phase != PhaseStatus {
		t.Fatalf("expected status phase, got %s", state.Phase)
	}
	if !state.ComposePresent {
		t.Fatalf("expected compose file to be detected")
	}
	if !reflect.DeepEqual(state.MissingServices, []string{"mysql"}) {
		t.Fatalf("unexpected missing services: %v", state.MissingServices)
	}

	reader.dockerAvailable = false
	broadcaster.Fire()
	if dashboard.State().Phase != PhaseDockerUnavailable {
		t.Fatalf("expected docker-unavailable, got %s", dashboard.State().Phase)
	}
}

func TestRenderDashboard(t *testing.T) {
	out := RenderDashboard(DashboardState{Phase: PhaseDockerUnavailable})
	if !strings.Contains(out, "Docker is not running") {
		t.Fatalf("unexpected render: %q", out)
	}

	summary := health.Summary{Status: health.StatusWarning, Total: 2, Running: 1, Exited: 1}
	out = RenderDashboard(DashboardState{
		Phase:           PhaseStatus,
		Summary:         &summary,
		ComposePresent:  true,
		MissingServices: []string{"redis"},
		Actions:         []string{"open", "down"},
	})
	for _, want := range []string{"WARNING", "EXISTS", "1 running", "redis", "open"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected render to contain %q, got %q", want, out)
		}
	}
}
