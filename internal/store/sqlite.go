package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wazimu/leadgate/internal/domain"
	"github.com/wazimu/leadgate/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the document in a single-row SQLite table and applies
// updates inside a transaction.
type SQLiteStore struct {
	db         *sql.DB
	mu         sync.Mutex // serializes writers to prevent SQLITE_BUSY
	maxRetries int
	baseDelay  time.Duration
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite state dsn requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, maxRetries: 3, baseDelay: 100 * time.Millisecond}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS state_document (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		doc TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Load reads the document; database errors are logged and yield an empty state.
func (s *SQLiteStore) Load(ctx context.Context) *domain.PersistedState {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM state_document WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewPersistedState()
	}
	if err != nil {
		slog.Warn("Failed to read state document", "backend", "sqlite", "error", err)
		return domain.NewPersistedState()
	}
	return decodeState([]byte(doc), "sqlite")
}

// Update runs fn inside a transaction, retrying with exponential backoff
// when the database is busy.
func (s *SQLiteStore) Update(ctx context.Context, fn func(*domain.PersistedState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for i := 0; i < s.maxRetries; i++ {
		err = s.updateOnce(ctx, fn)
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i < s.maxRetries-1 {
			delay := s.baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
			slog.Debug("State update hit SQLITE_BUSY, retrying", "attempt", i+1, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("update state after %d attempts: %w", s.maxRetries, err)
}

func (s *SQLiteStore) updateOnce(ctx context.Context, fn func(*domain.PersistedState) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	state := domain.NewPersistedState()
	var doc string
	switch err := tx.QueryRowContext(ctx, `SELECT doc FROM state_document WHERE id = 1`).Scan(&doc); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read state document: %w", err)
	default:
		state = decodeState([]byte(doc), "sqlite")
	}

	if err := fn(state); err != nil {
		return err
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_document (id, doc, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write state document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state transaction: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
