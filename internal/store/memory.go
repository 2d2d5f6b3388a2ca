package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/wazimu/leadgate/internal/domain"
)

// MemoryStore holds the document in process memory. State is lost on exit.
type MemoryStore struct {
	mu       sync.Mutex
	snapshot []byte
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a deep copy of the current document.
func (s *MemoryStore) Load(_ context.Context) *domain.PersistedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeState(s.snapshot, "memory")
}

// Update applies fn to a copy and keeps it when fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, fn func(*domain.PersistedState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	state := decodeState(s.snapshot, "memory")
	if err := fn(state); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	s.snapshot = data
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
