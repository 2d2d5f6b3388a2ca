// Package store provides the persisted state document and its backends.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/wazimu/leadgate/internal/domain"
)

// Repository owns the persisted state document. All reads and writes of
// rate-limit counters and webhook logs go through it.
type Repository interface {
	// Load returns the current document. Missing or unreadable data yields
	// an empty state; Load never fails.
	Load(ctx context.Context) *domain.PersistedState

	// Update performs a serialized read-modify-write. When fn returns an
	// error nothing is written and that error is returned.
	Update(ctx context.Context, fn func(*domain.PersistedState) error) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Open builds a repository from a DSN. An empty DSN selects the JSON file
// backend at defaultPath.
func Open(dsn, defaultPath string) (Repository, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewJSONFile(defaultPath), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse state dsn: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "file":
		return NewJSONFile(dsnPath(parsed, defaultPath)), nil
	case "memory", "mem":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(dsnPath(parsed, ""))
	case "postgres", "postgresql":
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported state backend scheme: %s", parsed.Scheme)
	}
}

func dsnPath(u *url.URL, fallback string) string {
	path := u.Host + u.Path
	if u.Opaque != "" {
		path = u.Opaque
	}
	if path == "" {
		return fallback
	}
	return path
}

// decodeState parses a stored document. Corrupt content is logged and
// treated as no prior state.
func decodeState(data []byte, source string) *domain.PersistedState {
	if len(data) == 0 {
		return domain.NewPersistedState()
	}
	var state domain.PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		slog.Warn("Discarding unreadable state document", "source", source, "error", err)
		return domain.NewPersistedState()
	}
	state.Normalize()
	return &state
}
