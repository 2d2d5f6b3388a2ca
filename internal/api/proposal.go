package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wazimu/leadgate/internal/domain"
	"github.com/wazimu/leadgate/internal/proposal"
	"github.com/wazimu/leadgate/internal/webhook"
)

// Deliverer sends a payload to the webhook receiver.
type Deliverer interface {
	Deliver(ctx context.Context, url string, payload any, clientID string, proposalVersion int) error
}

type approveRequest struct {
	ClientID        string `json:"clientId" validate:"required"`
	ProposalText    string `json:"proposalText" validate:"required"`
	ProposalVersion int    `json:"proposalVersion" validate:"required,gt=0"`
}

// ProposalHandler serves POST /api/proposal/approve.
type ProposalHandler struct {
	dispatcher Deliverer
	webhookURL func() string
	script     proposal.Script
	maxBody    int64
	now        func() time.Time
}

// NewProposalHandler creates an approval handler. webhookURL is consulted
// on every request.
func NewProposalHandler(dispatcher Deliverer, webhookURL func() string, script proposal.Script, maxBody int64) *ProposalHandler {
	return &ProposalHandler{
		dispatcher: dispatcher,
		webhookURL: webhookURL,
		script:     script,
		maxBody:    maxBody,
		now:        time.Now,
	}
}

// RegisterRoutes registers the approval route.
func (h *ProposalHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/proposal/approve", h.HandleApprove)
}

// HandleApprove formats the proposal and delivers it to the webhook.
func (h *ProposalHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return
		}
		Error(w, http.StatusBadRequest, "Invalid proposal payload.")
		return
	}
	if err := validateStruct(&req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid proposal payload.")
		return
	}

	url := h.webhookURL()
	if url == "" {
		slog.Error("Webhook URL is not configured")
		Error(w, http.StatusInternalServerError, "Webhook URL is not configured.")
		return
	}

	payload := domain.ProposalPayload{
		Timestamp:       h.now().UTC().Format(time.RFC3339Nano),
		ClientID:        req.ClientID,
		ProposalVersion: req.ProposalVersion,
		Proposal:        req.ProposalText,
		ProposalHTML:    h.script.Format(req.ProposalText),
	}

	// Delivery outlives a dropped client connection so the audit log stays complete.
	ctx := context.WithoutCancel(r.Context())
	err := h.dispatcher.Deliver(ctx, url, payload, req.ClientID, req.ProposalVersion)
	var failed *webhook.DeliveryFailedError
	switch {
	case err == nil:
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.As(err, &failed):
		slog.Warn("Proposal delivery failed", "client_id", req.ClientID, "proposal_version", req.ProposalVersion, "attempts", failed.Attempts, "error", failed.Message)
		Error(w, http.StatusBadGateway, failed.Message)
	default:
		slog.Error("Proposal delivery aborted", "client_id", req.ClientID, "proposal_version", req.ProposalVersion, "error", err)
		Error(w, http.StatusInternalServerError, "Webhook delivery failed.")
	}
}
