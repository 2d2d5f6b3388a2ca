package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/wazimu/leadgate/internal/domain"
)

const (
	postgresStateKey         = "default"
	postgresOperationTimeout = 5 * time.Second
)

// PostgresStore keeps the document in one row and locks it for the
// duration of each update.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a Postgres-backed repository and creates and seeds the
// state table before returning, so an unreachable server fails here.
func NewPostgres(dsn string) (Repository, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres state dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &PostgresStore{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS leadgate_state (
			state_key TEXT PRIMARY KEY,
			snapshot JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return err
	}
	// Seed the row so SELECT ... FOR UPDATE always has something to lock.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leadgate_state (state_key, snapshot) VALUES ($1, $2)
		ON CONFLICT (state_key) DO NOTHING`, postgresStateKey, `{"rateLimits":{},"webhookLogs":[]}`)
	return err
}

// Load reads the document; database errors are logged and yield an empty state.
func (s *PostgresStore) Load(ctx context.Context) *domain.PersistedState {
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM leadgate_state WHERE state_key = $1`, postgresStateKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewPersistedState()
	}
	if err != nil {
		slog.Warn("Failed to read state document", "backend", "postgres", "error", err)
		return domain.NewPersistedState()
	}
	return decodeState([]byte(payload), "postgres")
}

// Update locks the state row, applies fn and writes the result back.
func (s *PostgresStore) Update(ctx context.Context, fn func(*domain.PersistedState) error) error {
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var payload string
	if err := tx.QueryRowContext(ctx,
		`SELECT snapshot FROM leadgate_state WHERE state_key = $1 FOR UPDATE`, postgresStateKey).Scan(&payload); err != nil {
		return fmt.Errorf("lock state document: %w", err)
	}
	state := decodeState([]byte(payload), "postgres")

	if err := fn(state); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE leadgate_state SET snapshot = $2, updated_at = NOW() WHERE state_key = $1`,
		postgresStateKey, string(data)); err != nil {
		return fmt.Errorf("write state document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state transaction: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
