package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/wazimu/leadgate/internal/domain"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	last  ChatRequest
	reply string
	err   error
	delay time.Duration
}

func (f *fakeProcessor) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResponse{Text: f.reply}, nil
}

func TestReplyMapsRolesAndScript(t *testing.T) {
	proc := &fakeProcessor{reply: "What city are you in?"}
	svc := NewService(proc, "be concise", time.Second)

	got, err := svc.Reply(context.Background(), "client-a", []domain.ChatMessage{
		{Role: "user", Text: "My site is slow"},
		{Role: "ai", Text: "Tell me more"},
		{Role: "user", Text: "It loses leads"},
	})
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if got != "What city are you in?" {
		t.Errorf("unexpected reply %q", got)
	}
	if proc.last.SystemInstruction != "be concise" || proc.last.ClientID != "client-a" {
		t.Errorf("unexpected request %+v", proc.last)
	}
	wantRoles := []string{RoleUser, RoleModel, RoleUser}
	for i, turn := range proc.last.Turns {
		if turn.Role != wantRoles[i] {
			t.Errorf("turn %d: expected role %s, got %s", i, wantRoles[i], turn.Role)
		}
	}
}

func TestReplyEmptyTranscript(t *testing.T) {
	proc := &fakeProcessor{}
	_, err := NewService(proc, "", 0).Reply(context.Background(), "client-a", nil)
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
	if proc.calls != 0 {
		t.Fatal("processor should not be called")
	}
}

func TestReplyTimeout(t *testing.T) {
	proc := &fakeProcessor{delay: time.Second}
	_, err := NewService(proc, "", 20*time.Millisecond).Reply(context.Background(), "client-a",
		[]domain.ChatMessage{{Role: "user", Text: "hi"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("upstream 500")}
	breaker := NewBreakerClient(proc, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil)
	req := ChatRequest{Turns: []Turn{{Role: RoleUser, Text: "hi"}}}

	for i := 0; i < 2; i++ {
		if _, err := breaker.Chat(context.Background(), req); err == nil {
			t.Fatal("expected failure")
		}
	}
	if breaker.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", breaker.State())
	}

	_, err := breaker.Chat(context.Background(), req)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}
	if !strings.Contains(err.Error(), "model-provider") {
		t.Errorf("expected breaker name in error, got %q", err)
	}
	if proc.calls != 2 {
		t.Fatalf("expected open breaker to skip the provider, got %d calls", proc.calls)
	}
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	proc := &fakeProcessor{err: context.Canceled}
	breaker := NewBreakerClient(proc, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		_, _ = breaker.Chat(context.Background(), ChatRequest{})
	}
	if breaker.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %s", breaker.State())
	}
}
