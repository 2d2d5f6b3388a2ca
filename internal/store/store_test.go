package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wazimu/leadgate/internal/domain"
)

func backends(t *testing.T) map[string]Repository {
	t.Helper()
	dir := t.TempDir()

	sqliteRepo, err := NewSQLite(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = sqliteRepo.Close() })

	return map[string]Repository{
		"json":   NewJSONFile(filepath.Join(dir, "local-storage.json")),
		"memory": NewMemory(),
		"sqlite": sqliteRepo,
	}
}

func TestLoadEmptyState(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			state := repo.Load(context.Background())
			if state.RateLimits == nil || state.WebhookLogs == nil {
				t.Fatalf("expected initialized collections, got %+v", state)
			}
			if len(state.RateLimits) != 0 || len(state.WebhookLogs) != 0 {
				t.Fatalf("expected empty state, got %+v", state)
			}
		})
	}
}

func TestUpdatePersists(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := repo.Update(ctx, func(s *domain.PersistedState) error {
				b := s.Bucket("2026-10-17")
				b.User["client-a"] = 3
				b.Global = 7
				s.WebhookLogs = append(s.WebhookLogs, domain.WebhookAttempt{
					ClientID: "client-a", Status: domain.AttemptSuccess, Attempt: 1,
					Payload: json.RawMessage(`{"proposal":"x"}`),
				})
				return nil
			})
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}

			state := repo.Load(ctx)
			b := state.RateLimits["2026-10-17"]
			if b == nil || b.User["client-a"] != 3 || b.Global != 7 {
				t.Fatalf("unexpected bucket: %+v", b)
			}
			if len(state.WebhookLogs) != 1 {
				t.Fatalf("unexpected logs: %+v", state.WebhookLogs)
			}
			// File backends may re-indent the payload; compare decoded values.
			var payload map[string]string
			if err := json.Unmarshal(state.WebhookLogs[0].Payload, &payload); err != nil {
				t.Fatalf("payload not valid JSON: %v", err)
			}
			if len(payload) != 1 || payload["proposal"] != "x" {
				t.Fatalf("unexpected payload: %s", state.WebhookLogs[0].Payload)
			}
		})
	}
}

func TestUpdateErrorDiscardsChanges(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			boom := errors.New("boom")
			err := repo.Update(ctx, func(s *domain.PersistedState) error {
				s.Bucket("2026-10-17").Global = 99
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}
			if got := repo.Load(ctx).RateLimits["2026-10-17"]; got != nil {
				t.Fatalf("expected no bucket after failed update, got %+v", got)
			}
		})
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const workers = 25
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := repo.Update(ctx, func(s *domain.PersistedState) error {
						s.Bucket("day").Global++
						return nil
					}); err != nil {
						t.Errorf("Update failed: %v", err)
					}
				}()
			}
			wg.Wait()

			if got := repo.Load(ctx).RateLimits["day"].Global; got != workers {
				t.Fatalf("expected %d increments, got %d", workers, got)
			}
		})
	}
}

func TestJSONFileCorruptContentYieldsEmptyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local-storage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	repo := NewJSONFile(path)

	state := repo.Load(context.Background())
	if len(state.RateLimits) != 0 || len(state.WebhookLogs) != 0 {
		t.Fatalf("expected empty state, got %+v", state)
	}

	if err := repo.Update(context.Background(), func(s *domain.PersistedState) error {
		s.Bucket("day").Global = 1
		return nil
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded domain.PersistedState
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("file not rewritten as valid JSON: %v", err)
	}
}

func TestJSONFilePartialDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local-storage.json")
	if err := os.WriteFile(path, []byte(`{"rateLimits":{"day":{"global":2}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	state := NewJSONFile(path).Load(context.Background())
	if state.WebhookLogs == nil {
		t.Fatal("expected webhookLogs to default to empty")
	}
	if b := state.RateLimits["day"]; b == nil || b.User == nil || b.Global != 2 {
		t.Fatalf("unexpected bucket: %+v", b)
	}
}

func TestJSONFileWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	repo := NewJSONFile(filepath.Join(blocker, "state.json"))
	err := repo.Update(context.Background(), func(*domain.PersistedState) error { return nil })
	if err == nil {
		t.Fatal("expected write failure when parent is a file")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	repo, err := Open("", filepath.Join(dir, "default.json"))
	if err != nil {
		t.Fatalf("Open default failed: %v", err)
	}
	if js, ok := repo.(*JSONFileStore); !ok || js.path != filepath.Join(dir, "default.json") {
		t.Fatalf("expected JSON store at default path, got %T", repo)
	}

	repo, err = Open("memory://", "")
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	if _, ok := repo.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", repo)
	}

	repo, err = Open("sqlite://"+filepath.Join(dir, "state.db"), "")
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	defer func() { _ = repo.Close() }()
	if _, ok := repo.(*SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", repo)
	}

	if _, err := Open("redis://localhost", ""); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}

func TestNewSQLiteRejectsNonDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	garbage := make([]byte, 0, 4096)
	for len(garbage) < 4096 {
		garbage = append(garbage, "this is not a sqlite database\n"...)
	}
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatal(err)
	}

	repo, err := NewSQLite(path)
	if err == nil {
		_ = repo.Close()
		t.Fatal("expected error opening a non-database file")
	}
	if repo != nil {
		t.Fatalf("expected no repository on failure, got %T", repo)
	}
}
