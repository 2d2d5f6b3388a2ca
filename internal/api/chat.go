package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/wazimu/leadgate/internal/domain"
	"github.com/wazimu/leadgate/internal/proposal"
	"github.com/wazimu/leadgate/internal/ratelimit"
)

// Rate-limit response headers.
const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
)

// QuotaChecker consumes daily chat quota.
type QuotaChecker interface {
	CheckAndIncrement(ctx context.Context, clientID string) (ratelimit.Decision, error)
	ResetAt() int64
	Usage(ctx context.Context, clientID string) (userCount, globalCount int)
}

// Replier produces the model's next message for a transcript.
type Replier interface {
	Reply(ctx context.Context, clientID string, messages []domain.ChatMessage) (string, error)
}

type chatRequest struct {
	ClientID string               `json:"clientId" validate:"required"`
	Messages []domain.ChatMessage `json:"messages" validate:"required,min=1"`
}

type chatResponse struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	quota   QuotaChecker
	agent   Replier
	script  proposal.Script
	maxBody int64
}

// NewChatHandler creates a chat handler.
func NewChatHandler(quota QuotaChecker, agent Replier, script proposal.Script, maxBody int64) *ChatHandler {
	return &ChatHandler{quota: quota, agent: agent, script: script, maxBody: maxBody}
}

// RegisterRoutes registers the chat route.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
}

// HandleChat validates the transcript, consumes quota and relays the
// transcript to the model.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		setRateHeaders(w, 0, h.quota.ResetAt())
		if errors.Is(err, errBodyTooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return
		}
		Error(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}
	if err := validateStruct(&req); err != nil {
		setRateHeaders(w, 0, h.quota.ResetAt())
		Error(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	decision, err := h.quota.CheckAndIncrement(r.Context(), req.ClientID)
	if err != nil {
		slog.Error("Rate limit check failed", "client_id", req.ClientID, "error", err)
		setRateHeaders(w, 0, h.quota.ResetAt())
		Error(w, http.StatusInternalServerError, "Rate limit check failed.")
		return
	}
	setRateHeaders(w, decision.Remaining, decision.ResetTimestamp)

	if !decision.Allowed {
		userCount, globalCount := h.quota.Usage(r.Context(), req.ClientID)
		slog.Info("Chat turn denied",
			"client_id", req.ClientID,
			"user_count", userCount,
			"global_count", globalCount,
			"reset", decision.ResetTimestamp,
		)
		Error(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again after reset.")
		return
	}

	text, err := h.agent.Reply(r.Context(), req.ClientID, req.Messages)
	if err != nil {
		slog.Error("Model reply failed",
			"client_id", req.ClientID,
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"error", err,
		)
		Error(w, http.StatusInternalServerError, "AI response failed. Please try again.")
		return
	}

	slog.Info("Chat turn served",
		"client_id", req.ClientID,
		"messages", len(req.Messages),
		"remaining", decision.Remaining,
	)
	JSON(w, http.StatusOK, chatResponse{Text: text, Final: h.script.IsFinal(text)})
}

func setRateHeaders(w http.ResponseWriter, remaining int, reset int64) {
	w.Header().Set(HeaderRateLimit, strconv.Itoa(ratelimit.UserLimit))
	w.Header().Set(HeaderRateRemaining, strconv.Itoa(remaining))
	w.Header().Set(HeaderRateReset, strconv.FormatInt(reset, 10))
}
