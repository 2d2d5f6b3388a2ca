package domain

// Transcript roles accepted from the chat widget.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// ChatMessage is one transcript entry sent by the chat widget.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ProposalPayload is the body delivered to the webhook receiver on approval.
type ProposalPayload struct {
	Timestamp       string `json:"timestamp"`
	ClientID        string `json:"clientId"`
	ProposalVersion int    `json:"proposalVersion"`
	Proposal        string `json:"proposal"`
	ProposalHTML    string `json:"proposalHtml"`
}
