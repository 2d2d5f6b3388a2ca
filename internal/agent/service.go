package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/wazimu/leadgate/internal/domain"
	"github.com/wazimu/leadgate/internal/metrics"
)

// Service turns widget transcripts into model requests.
type Service struct {
	processor Processor
	script    string
	timeout   time.Duration
}

// NewService creates a service that sends script as the system instruction
// and bounds each model call by timeout (0 disables the bound).
func NewService(processor Processor, script string, timeout time.Duration) *Service {
	return &Service{processor: processor, script: script, timeout: timeout}
}

// Reply submits the transcript and returns the model's text.
func (s *Service) Reply(ctx context.Context, clientID string, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyTranscript
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.processor.Chat(ctx, ChatRequest{
		ClientID:          clientID,
		SystemInstruction: s.script,
		Turns:             ToTurns(messages),
	})
	metrics.ModelLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelRequests.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("model reply: %w", err)
	}
	metrics.ModelRequests.WithLabelValues("success").Inc()
	if resp == nil {
		return "", nil
	}
	return resp.Text, nil
}

// ToTurns maps widget roles onto model roles: "ai" becomes the model,
// anything else is the user.
func ToTurns(messages []domain.ChatMessage) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		role := RoleUser
		if m.Role == domain.RoleAI {
			role = RoleModel
		}
		turns = append(turns, Turn{Role: role, Text: m.Text})
	}
	return turns
}
