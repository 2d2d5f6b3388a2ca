package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/wazimu/leadgate/internal/metrics"
)

// BreakerClient wraps a Processor with a circuit breaker so a failing
// provider is not hammered by every chat turn.
type BreakerClient struct {
	next Processor
	cb   *gobreaker.CircuitBreaker[*ChatResponse]
	name string
}

// BreakerSettings tunes when the circuit opens.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultBreakerSettings opens after 5 consecutive failures for 30 seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// NewBreakerClient wraps next.
func NewBreakerClient(next Processor, settings BreakerSettings, logger *slog.Logger) *BreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	name := "model-provider"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*ChatResponse](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return &BreakerClient{next: next, cb: cb, name: name}
}

// Chat forwards to the wrapped Processor unless the circuit is open.
func (b *BreakerClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := b.cb.Execute(func() (*ChatResponse, error) {
		return b.next.Chat(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ModelRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	return resp, err
}

// State returns the current breaker state.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
