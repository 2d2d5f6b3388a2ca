// Package domain contains core domain types for the lead-qualification service.
package domain

import "encoding/json"

// PersistedState is the single durable document owned by the store.
type PersistedState struct {
	RateLimits  map[string]*DailyBucket `json:"rateLimits"`
	WebhookLogs []WebhookAttempt        `json:"webhookLogs"`
}

// NewPersistedState returns a zero-valued state with empty collections.
func NewPersistedState() *PersistedState {
	return &PersistedState{
		RateLimits:  make(map[string]*DailyBucket),
		WebhookLogs: []WebhookAttempt{},
	}
}

// Normalize replaces nil collections left by a partial document with empty ones.
func (s *PersistedState) Normalize() {
	if s.RateLimits == nil {
		s.RateLimits = make(map[string]*DailyBucket)
	}
	if s.WebhookLogs == nil {
		s.WebhookLogs = []WebhookAttempt{}
	}
	for key, bucket := range s.RateLimits {
		if bucket == nil {
			s.RateLimits[key] = NewDailyBucket()
			continue
		}
		if bucket.User == nil {
			bucket.User = make(map[string]int)
		}
	}
}

// Bucket returns the bucket for dateKey, creating it when absent.
func (s *PersistedState) Bucket(dateKey string) *DailyBucket {
	bucket, ok := s.RateLimits[dateKey]
	if !ok || bucket == nil {
		bucket = NewDailyBucket()
		s.RateLimits[dateKey] = bucket
	}
	return bucket
}

// DailyBucket holds chat turn counters for one UTC calendar day.
type DailyBucket struct {
	User   map[string]int `json:"user"`
	Global int            `json:"global"`
}

// NewDailyBucket returns an empty bucket.
func NewDailyBucket() *DailyBucket {
	return &DailyBucket{User: make(map[string]int)}
}

// Attempt statuses recorded in the webhook log.
const (
	AttemptSuccess = "success"
	AttemptFailure = "failure"
)

// WebhookAttempt is an immutable audit record of one delivery attempt.
type WebhookAttempt struct {
	Timestamp       string          `json:"timestamp"`
	ClientID        string          `json:"clientId"`
	ProposalVersion int             `json:"proposalVersion"`
	Status          string          `json:"status"`
	Attempt         int             `json:"attempt"`
	ResponseCode    *int            `json:"responseCode"`
	ErrorMessage    *string         `json:"errorMessage"`
	Payload         json.RawMessage `json:"payload"`
}
