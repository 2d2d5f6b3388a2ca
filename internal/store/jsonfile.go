package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/wazimu/leadgate/internal/domain"
)

// JSONFileStore keeps the document in a single indented JSON file.
type JSONFileStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONFile creates a file-backed repository at path.
func NewJSONFile(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Load reads the document from disk.
func (s *JSONFileStore) Load(_ context.Context) *domain.PersistedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Update applies fn under the store mutex and rewrites the file.
func (s *JSONFileStore) Update(ctx context.Context, fn func(*domain.PersistedState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	state := s.read()
	if err := fn(state); err != nil {
		return err
	}
	return s.write(state)
}

// Ping checks that the state directory exists.
func (s *JSONFileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat state directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("state directory %s is not a directory", dir)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *JSONFileStore) Close() error {
	return nil
}

func (s *JSONFileStore) read() *domain.PersistedState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to read state file", "path", s.path, "error", err)
		}
		return domain.NewPersistedState()
	}
	return decodeState(data, s.path)
}

func (s *JSONFileStore) write(state *domain.PersistedState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
