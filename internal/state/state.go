package state

import (
	"context"
	"time"

	"github.com/nholik/sail-sentinel/internal/sail"
)

// State is what survives a restart: the last observed run states, used for
// transition detection, and one-time message flags.
type State struct {
	Services      map[string]sail.RunState `json:"services"`
	ShownMessages map[string]bool          `json:"shown_messages"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

func (s *State) normalize() {
	if s.Services == nil {
		s.Services = map[string]sail.RunState{}
	}
	if s.ShownMessages == nil {
		s.ShownMessages = map[string]bool{}
	}
}

// Store defines the interface for persisting state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// MarkShownOnce records key in the store and reports whether this call was the
// first to do so.
func MarkShownOnce(ctx context.Context, store Store, key string) (bool, error) {
	loaded, err := store.Load(ctx)
	if err != nil {
		return false, err
	}
	if loaded.ShownMessages[key] {
		return false, nil
	}
	loaded.ShownMessages[key] = true
	if err := store.Save(ctx, loaded); err != nil {
		return false, err
	}
	return true, nil
}
