package state

import (
	"errors"
	"sync"
	"time"

	"github.com/nholik/sail-sentinel/internal/sail"
)

// ErrWriterClaimed is returned when a second component asks for write access.
var ErrWriterClaimed = errors.New("app state writer already claimed")

// Reader is the read-only view of AppState given to consumers.
type Reader interface {
	Snapshot() sail.Snapshot
	DockerAvailable() bool
	Loading() bool
	UpdatedAt() time.Time
}

// AppState holds the process-wide status snapshot. Only the holder of its
// Writer may change it.
type AppState struct {
	mu              sync.RWMutex
	snapshot        sail.Snapshot
	dockerAvailable bool
	loading         bool
	updatedAt       time.Time
	writerClaimed   bool
}

// NewAppState returns the initial state: empty snapshot, engine assumed
// available, loading until the first poll completes.
func NewAppState() *AppState {
	return &AppState{
		snapshot:        sail.Snapshot{},
		dockerAvailable: true,
		loading:         true,
	}
}

// Writer hands out the single write handle.
func (s *AppState) Writer() (*Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writerClaimed {
		return nil, ErrWriterClaimed
	}
	s.writerClaimed = true
	return &Writer{state: s}, nil
}

// Snapshot returns a copy of the current snapshot.
func (s *AppState) Snapshot() sail.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// DockerAvailable reports whether the last poll reached the container engine.
func (s *AppState) DockerAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dockerAvailable
}

// Loading reports whether no poll has completed yet.
func (s *AppState) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// UpdatedAt returns when the state was last committed.
func (s *AppState) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Writer is the exclusive write handle for AppState.
type Writer struct {
	state *AppState
}

// Commit replaces the snapshot and availability flag together and clears
// the loading flag, so readers never see a half-applied poll.
func (w *Writer) Commit(snapshot sail.Snapshot, dockerAvailable bool) {
	next := snapshot.Clone()
	w.state.mu.Lock()
	defer w.state.mu.Unlock()
	w.state.snapshot = next
	w.state.dockerAvailable = dockerAvailable
	w.state.loading = false
	w.state.updatedAt = time.Now().UTC()
}
