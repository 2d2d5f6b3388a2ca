// Package agent talks to the hosted language model that runs the interview.
package agent

import (
	"errors"
)

// Model-side transcript roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ErrEmptyTranscript is returned when there is nothing to send to the model.
var ErrEmptyTranscript = errors.New("agent: empty transcript")

// Turn is one transcript entry in model terms.
type Turn struct {
	Role string
	Text string
}

// ChatRequest is a full transcript plus the instruction script.
type ChatRequest struct {
	ClientID          string
	SystemInstruction string
	Turns             []Turn
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Text string
}

// Config holds agent configuration.
type Config struct {
	APIKey string
	Model  string
}

// DefaultConfig returns default agent configuration.
func DefaultConfig() Config {
	return Config{
		Model: "gemini-2.5-flash",
	}
}
