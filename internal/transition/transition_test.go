package transition

import (
	"testing"

	"github.com/nholik/sail-sentinel/internal/sail"
)

func TestDetectServiceTransitions_FirstRun(t *testing.T) {
	current := sail.Snapshot{
		{Name: "laravel.test", RunState: sail.RunStateRunning},
		{Name: "mysql", RunState: sail.RunStateExited, Image: "mysql/mysql-server:8.0"},
	}

	transitions := DetectServiceTransitions(nil, current)

	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(transitions))
	}
	if transitions[0].Name != "mysql" {
		t.Fatalf("expected transition for mysql, got %s", transitions[0].Name)
	}
	if transitions[0].Previous != "" || transitions[0].Current != sail.RunStateExited {
		t.Fatalf("unexpected transition: %+v", transitions[0])
	}
	if transitions[0].Image != "mysql/mysql-server:8.0" {
		t.Fatalf("expected image carried, got %q", transitions[0].Image)
	}
}

func TestDetectServiceTransitions_NoOp(t *testing.T) {
	prev := map[string]sail.RunState{"redis": sail.RunStatePaused}
	current := sail.Snapshot{{Name: "redis", RunState: sail.RunStatePaused}}

	if transitions := DetectServiceTransitions(prev, current); len(transitions) != 0 {
		t.Fatalf("expected no transitions, got %+v", transitions)
	}
}

func TestDetectServiceTransitions_StateChange(t *testing.T) {
	prev := map[string]sail.RunState{
		"redis": sail.RunStateRunning,
		"mysql": sail.RunStateExited,
	}
	current := sail.Snapshot{
		{Name: "redis", RunState: sail.RunStatePaused},
		{Name: "mysql", RunState: sail.RunStateRunning},
	}

	transitions := DetectServiceTransitions(prev, current)

	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(transitions))
	}
	if transitions[0].Name != "mysql" || transitions[0].Previous != sail.RunStateExited || transitions[0].Current != sail.RunStateRunning {
		t.Fatalf("unexpected mysql transition: %+v", transitions[0])
	}
	if transitions[1].Name != "redis" || transitions[1].Current != sail.RunStatePaused {
		t.Fatalf("unexpected redis transition: %+v", transitions[1])
	}
}

func TestDetectServiceTransitions_NewAndRemoved(t *testing.T) {
	prev := map[string]sail.RunState{
		"meilisearch": sail.RunStateRunning,
		"redis":       sail.RunStateRunning,
	}
	current := sail.Snapshot{
		{Name: "redis", RunState: sail.RunStateRunning},
		{Name: "mailpit", RunState: sail.RunStateRunning},
		{Name: "selenium", RunState: sail.RunStateExited},
	}

	transitions := DetectServiceTransitions(prev, current)

	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %+v", transitions)
	}
	if transitions[0].Name != "meilisearch" || !transitions[0].Removed() {
		t.Fatalf("expected meilisearch removed, got %+v", transitions[0])
	}
	if transitions[1].Name != "selenium" || transitions[1].Previous != "" {
		t.Fatalf("expected new selenium exited, got %+v", transitions[1])
	}
}
