package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

func emptyState() State {
	var s State
	s.normalize()
	return s
}

// FileStore keeps State in an indented JSON file, by default
// .sail-sentinel/state.json in the workspace.
type FileStore struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewFileStore returns a store backed by path. The file and its directory are
// created on first Save.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("path", path).Logger(),
	}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load returns the saved state. A missing file yields an empty state. A file
// that does not decode is renamed to <path>.corrupt and also yields an empty
// state, so the next Save starts clean.
func (s *FileStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debug().Msg("no saved state, starting fresh")
		return emptyState(), nil
	case err != nil:
		return State{}, fmt.Errorf("read state: %w", err)
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.quarantine(err)
		return emptyState(), nil
	}
	loaded.normalize()
	return loaded, nil
}

func (s *FileStore) quarantine(cause error) {
	aside := s.path + ".corrupt"
	if err := os.Rename(s.path, aside); err != nil {
		s.logger.Warn().Err(cause).AnErr("rename_error", err).Msg("saved state is unreadable, ignoring it")
		return
	}
	s.logger.Warn().Err(cause).Str("moved_to", aside).Msg("saved state is unreadable, moved aside")
}

// Save replaces the file contents atomically.
func (s *FileStore) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state.normalize()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.path, append(data, '\n')); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// writeFileAtomic writes to a sibling temp file and renames it over path.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	if d, openErr := os.Open(dir); openErr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
