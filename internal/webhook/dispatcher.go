// Package webhook delivers approved proposals to the configured receiver
// and records every attempt in the persisted audit log.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wazimu/leadgate/internal/domain"
	"github.com/wazimu/leadgate/internal/metrics"
	"github.com/wazimu/leadgate/internal/store"
)

const defaultFailureMessage = "Webhook request failed"

// DeliveryFailedError is returned once every attempt has failed. Message
// is the last observed failure.
type DeliveryFailedError struct {
	Message  string
	Attempts int
}

func (e *DeliveryFailedError) Error() string {
	return e.Message
}

// Config controls retry behaviour.
type Config struct {
	MaxAttempts  int
	Backoff      time.Duration // wait before retry n is Backoff*n
	Timeout      time.Duration // per attempt
	LogRetention int           // newest attempts kept in the log; 0 keeps all
}

// DefaultConfig returns three attempts with 500ms linear backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		Backoff:      500 * time.Millisecond,
		Timeout:      30 * time.Second,
		LogRetention: 1000,
	}
}

// Dispatcher posts payloads with bounded retries.
type Dispatcher struct {
	repo   store.Repository
	client *http.Client
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil client gets one with cfg.Timeout.
func NewDispatcher(repo store.Repository, client *http.Client, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{repo: repo, client: client, cfg: cfg, now: time.Now, logger: logger}
}

// Deliver posts payload to url until a 2xx response or the attempt budget
// runs out. Each attempt is appended to the log before the next begins.
func (d *Dispatcher) Deliver(ctx context.Context, url string, payload any, clientID string, proposalVersion int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	lastError := ""
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		statusCode, sendErr := d.send(ctx, url, body)

		record := domain.WebhookAttempt{
			ClientID:        clientID,
			ProposalVersion: proposalVersion,
			Attempt:         attempt,
			Payload:         body,
		}
		switch {
		case sendErr != nil:
			lastError = sendErr.Error()
			if lastError == "" {
				lastError = defaultFailureMessage
			}
			record.Status = domain.AttemptFailure
			record.ErrorMessage = &lastError
		case statusCode >= 200 && statusCode < 300:
			record.Status = domain.AttemptSuccess
			record.ResponseCode = &statusCode
		default:
			lastError = fmt.Sprintf("Webhook responded with status %d", statusCode)
			record.Status = domain.AttemptFailure
			record.ResponseCode = &statusCode
			record.ErrorMessage = &lastError
		}

		if err := d.record(ctx, record); err != nil {
			return err
		}
		metrics.WebhookAttempts.WithLabelValues(record.Status).Inc()

		if record.Status == domain.AttemptSuccess {
			d.logger.Info("Webhook delivered", "client_id", clientID, "proposal_version", proposalVersion, "attempt", attempt, "status_code", statusCode)
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			return nil
		}

		d.logger.Warn("Webhook attempt failed", "client_id", clientID, "proposal_version", proposalVersion, "attempt", attempt, "error", lastError)

		if attempt < d.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				lastError = ctx.Err().Error()
				metrics.WebhookDeliveries.WithLabelValues("exhausted").Inc()
				return &DeliveryFailedError{Message: lastError, Attempts: attempt}
			case <-time.After(d.cfg.Backoff * time.Duration(attempt)):
			}
		}
	}

	metrics.WebhookDeliveries.WithLabelValues("exhausted").Inc()
	return &DeliveryFailedError{Message: lastError, Attempts: d.cfg.MaxAttempts}
}

// send performs one POST. A returned error means no response was obtained.
func (d *Dispatcher) send(ctx context.Context, url string, body []byte) (int, error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, nil
}

// record appends one attempt and trims the log to the retention window.
func (d *Dispatcher) record(ctx context.Context, attempt domain.WebhookAttempt) error {
	attempt.Timestamp = d.now().UTC().Format(time.RFC3339Nano)
	err := d.repo.Update(ctx, func(state *domain.PersistedState) error {
		state.WebhookLogs = append(state.WebhookLogs, attempt)
		if keep := d.cfg.LogRetention; keep > 0 && len(state.WebhookLogs) > keep {
			state.WebhookLogs = append([]domain.WebhookAttempt(nil), state.WebhookLogs[len(state.WebhookLogs)-keep:]...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record webhook attempt %d: %w", attempt.Attempt, err)
	}
	return nil
}
