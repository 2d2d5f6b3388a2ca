// Package ratelimit enforces the per-client and global daily chat quotas.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wazimu/leadgate/internal/domain"
	"github.com/wazimu/leadgate/internal/metrics"
	"github.com/wazimu/leadgate/internal/store"
)

// Daily quotas. Tune here.
const (
	UserLimit   = 10
	GlobalLimit = 40
)

const dateKeyLayout = "2006-01-02"

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed        bool
	Remaining      int
	ResetTimestamp int64
}

// Limiter checks and consumes quota against the persisted state.
type Limiter struct {
	repo          store.Repository
	now           func() time.Time
	retentionDays int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithRetentionDays sets how many daily buckets survive pruning, today included.
func WithRetentionDays(days int) Option {
	return func(l *Limiter) {
		if days > 0 {
			l.retentionDays = days
		}
	}
}

// New creates a Limiter backed by repo.
func New(repo store.Repository, opts ...Option) *Limiter {
	l := &Limiter{repo: repo, now: time.Now, retentionDays: 7}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DateKey returns the UTC day key for t.
func DateKey(t time.Time) string {
	return t.UTC().Format(dateKeyLayout)
}

// ResetTimestamp returns the Unix time of the UTC midnight following t.
func ResetTimestamp(t time.Time) int64 {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC).Unix()
}

// ResetAt returns the reset timestamp for the limiter's current time.
func (l *Limiter) ResetAt() int64 {
	return ResetTimestamp(l.now())
}

// CheckAndIncrement consumes one chat turn for clientID when both quotas
// have room. Denials leave counters untouched. The check and both
// increments happen inside one store update.
func (l *Limiter) CheckAndIncrement(ctx context.Context, clientID string) (Decision, error) {
	now := l.now()
	dateKey := DateKey(now)
	decision := Decision{ResetTimestamp: ResetTimestamp(now)}

	err := l.repo.Update(ctx, func(state *domain.PersistedState) error {
		var userCount, globalCount int
		if bucket := state.RateLimits[dateKey]; bucket != nil {
			userCount = bucket.User[clientID]
			globalCount = bucket.Global
		}

		userRemaining := UserLimit - userCount
		globalRemaining := GlobalLimit - globalCount
		if userRemaining <= 0 || globalRemaining <= 0 {
			decision.Remaining = remaining(userRemaining, globalRemaining)
			return errDenied
		}

		bucket := state.Bucket(dateKey)
		bucket.User[clientID] = userCount + 1
		bucket.Global = globalCount + 1
		l.prune(state, now)

		decision.Allowed = true
		decision.Remaining = remaining(UserLimit-bucket.User[clientID], GlobalLimit-bucket.Global)
		return nil
	})
	if errors.Is(err, errDenied) {
		metrics.ChatTurns.WithLabelValues("denied").Inc()
		return decision, nil
	}
	if err != nil {
		return Decision{ResetTimestamp: decision.ResetTimestamp}, fmt.Errorf("consume chat quota: %w", err)
	}
	metrics.ChatTurns.WithLabelValues("allowed").Inc()
	return decision, nil
}

// Usage reports today's counters for clientID without consuming quota.
func (l *Limiter) Usage(ctx context.Context, clientID string) (userCount, globalCount int) {
	state := l.repo.Load(ctx)
	if bucket := state.RateLimits[DateKey(l.now())]; bucket != nil {
		return bucket.User[clientID], bucket.Global
	}
	return 0, 0
}

// prune drops buckets older than the retention window.
func (l *Limiter) prune(state *domain.PersistedState, now time.Time) {
	cutoff := DateKey(now.UTC().AddDate(0, 0, -(l.retentionDays - 1)))
	for key := range state.RateLimits {
		// Day keys sort lexically in date order.
		if key < cutoff {
			delete(state.RateLimits, key)
		}
	}
}

// errDenied aborts the store update so a denial writes nothing.
var errDenied = errors.New("quota exhausted")

func remaining(user, global int) int {
	return max(0, min(user, global))
}
