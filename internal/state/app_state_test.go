package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/nholik/sail-sentinel/internal/sail"
)

func TestAppState_InitialValues(t *testing.T) {
	s := NewAppState()

	if !s.Loading() {
		t.Fatalf("expected loading before first commit")
	}
	if !s.DockerAvailable() {
		t.Fatalf("expected docker assumed available before first commit")
	}
	if snap := s.Snapshot(); snap == nil || len(snap) != 0 {
		t.Fatalf("expected empty non-nil snapshot, got %v", snap)
	}
	if !s.UpdatedAt().IsZero() {
		t.Fatalf("expected zero updated time")
	}
}

func TestAppState_SingleWriter(t *testing.T) {
	s := NewAppState()

	if _, err := s.Writer(); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := s.Writer(); !errors.Is(err, ErrWriterClaimed) {
		t.Fatalf("expected ErrWriterClaimed, got %v", err)
	}
}

func TestWriter_CommitAppliesAllFields(t *testing.T) {
	s := NewAppState()
	w, err := s.Writer()
	if err != nil {
		t.Fatalf("claim writer: %v", err)
	}

	w.Commit(sail.Snapshot{{Name: "mysql", RunState: sail.RunStateRunning}}, false)

	if s.Loading() {
		t.Fatalf("expected loading cleared")
	}
	if s.DockerAvailable() {
		t.Fatalf("expected docker unavailable")
	}
	if got := s.Snapshot(); len(got) != 1 || got[0].Name != "mysql" {
		t.Fatalf("unexpected snapshot: %v", got)
	}
	if s.UpdatedAt().IsZero() {
		t.Fatalf("expected updated time to be set")
	}

	w.Commit(nil, true)
	if got := s.Snapshot(); got == nil || len(got) != 0 {
		t.Fatalf("expected nil commit to store empty snapshot, got %v", got)
	}
}

func TestAppState_SnapshotIsCopy(t *testing.T) {
	s := NewAppState()
	w, _ := s.Writer()
	w.Commit(sail.Snapshot{{Name: "redis", Ports: []sail.PortBinding{{TargetPort: 6379}}}}, true)

	got := s.Snapshot()
	got[0].Name = "changed"
	got[0].Ports[0].TargetPort = 1

	again := s.Snapshot()
	if again[0].Name != "redis" || again[0].Ports[0].TargetPort != 6379 {
		t.Fatalf("reader mutation leaked into state: %v", again)
	}
}

func TestAppState_ConcurrentReadsDuringCommit(t *testing.T) {
	s := NewAppState()
	w, _ := s.Writer()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
				_ = s.DockerAvailable()
				_ = s.Loading()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		w.Commit(sail.Snapshot{{Name: "svc"}}, j%2 == 0)
	}
	wg.Wait()
}
