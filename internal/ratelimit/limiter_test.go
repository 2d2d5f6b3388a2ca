package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wazimu/leadgate/internal/domain"
	"github.com/wazimu/leadgate/internal/store"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var day = time.Date(2026, 10, 17, 15, 4, 5, 0, time.UTC)

func TestUserLimit(t *testing.T) {
	repo := store.NewMemory()
	l := New(repo, WithClock(fixedClock(day)))
	ctx := context.Background()

	for i := 1; i <= UserLimit; i++ {
		d, err := l.CheckAndIncrement(ctx, "client-a")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("call %d denied", i)
		}
		if d.Remaining != UserLimit-i {
			t.Fatalf("call %d: expected remaining %d, got %d", i, UserLimit-i, d.Remaining)
		}
	}

	d, err := l.CheckAndIncrement(ctx, "client-a")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected 11th call denied with remaining 0, got %+v", d)
	}

	if user, global := l.Usage(ctx, "client-a"); user != UserLimit || global != UserLimit {
		t.Fatalf("denial mutated counters: user=%d global=%d", user, global)
	}
}

func TestGlobalLimitAcrossClients(t *testing.T) {
	l := New(store.NewMemory(), WithClock(fixedClock(day)))
	ctx := context.Background()

	allowed := 0
	for c := 0; c < 10; c++ {
		for i := 0; i < 6; i++ {
			d, err := l.CheckAndIncrement(ctx, fmt.Sprintf("client-%d", c))
			if err != nil {
				t.Fatal(err)
			}
			if d.Allowed {
				allowed++
			}
		}
	}
	if allowed != GlobalLimit {
		t.Fatalf("expected %d allowed turns, got %d", GlobalLimit, allowed)
	}

	d, err := l.CheckAndIncrement(ctx, "fresh-client")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected fresh client denied once global quota is spent, got %+v", d)
	}
}

func TestRemainingUsesTighterQuota(t *testing.T) {
	repo := store.NewMemory()
	ctx := context.Background()
	if err := repo.Update(ctx, func(s *domain.PersistedState) error {
		s.Bucket(DateKey(day)).Global = GlobalLimit - 2
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	l := New(repo, WithClock(fixedClock(day)))
	d, err := l.CheckAndIncrement(ctx, "client-a")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected allowed with remaining 1, got %+v", d)
	}
}

func TestResetTimestampIsNextUTCMidnight(t *testing.T) {
	want := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC).Unix()

	l := New(store.NewMemory(), WithClock(fixedClock(day)))
	first, _ := l.CheckAndIncrement(context.Background(), "a")
	second, _ := l.CheckAndIncrement(context.Background(), "b")
	if first.ResetTimestamp != want || second.ResetTimestamp != want {
		t.Fatalf("expected reset %d, got %d and %d", want, first.ResetTimestamp, second.ResetTimestamp)
	}

	late := time.Date(2026, 10, 17, 23, 59, 59, 0, time.FixedZone("EST", -5*3600))
	if got := ResetTimestamp(late); got != time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC).Unix() {
		t.Fatalf("expected reset computed in UTC, got %d", got)
	}
}

func TestNewDayStartsFresh(t *testing.T) {
	repo := store.NewMemory()
	now := day
	l := New(repo, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < UserLimit; i++ {
		if _, err := l.CheckAndIncrement(ctx, "client-a"); err != nil {
			t.Fatal(err)
		}
	}
	now = day.Add(24 * time.Hour)
	d, err := l.CheckAndIncrement(ctx, "client-a")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.Remaining != UserLimit-1 {
		t.Fatalf("expected fresh quota on new day, got %+v", d)
	}
}

func TestOldBucketsArePruned(t *testing.T) {
	repo := store.NewMemory()
	ctx := context.Background()
	old := DateKey(day.AddDate(0, 0, -3))
	keep := DateKey(day.AddDate(0, 0, -1))
	if err := repo.Update(ctx, func(s *domain.PersistedState) error {
		s.Bucket(old).Global = 5
		s.Bucket(keep).Global = 5
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	l := New(repo, WithClock(fixedClock(day)), WithRetentionDays(2))
	if _, err := l.CheckAndIncrement(ctx, "client-a"); err != nil {
		t.Fatal(err)
	}

	state := repo.Load(ctx)
	if _, ok := state.RateLimits[old]; ok {
		t.Errorf("expected bucket %s to be pruned", old)
	}
	if _, ok := state.RateLimits[keep]; !ok {
		t.Errorf("expected bucket %s to be kept", keep)
	}
}

func TestConcurrentCallsNeverExceedQuota(t *testing.T) {
	l := New(store.NewMemory(), WithClock(fixedClock(day)))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.CheckAndIncrement(ctx, "client-a")
			if err != nil {
				t.Errorf("CheckAndIncrement failed: %v", err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != UserLimit {
		t.Fatalf("expected exactly %d allowed, got %d", UserLimit, allowed)
	}
}

type failingRepo struct{ store.Repository }

func (failingRepo) Update(context.Context, func(*domain.PersistedState) error) error {
	return errors.New("disk full")
}

func TestPersistenceFailurePropagates(t *testing.T) {
	l := New(failingRepo{store.NewMemory()}, WithClock(fixedClock(day)))
	if _, err := l.CheckAndIncrement(context.Background(), "client-a"); err == nil {
		t.Fatal("expected persistence failure")
	}
}
