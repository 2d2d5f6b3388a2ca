// Package metrics defines the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatTurns counts rate-limit decisions by outcome ("allowed", "denied").
	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_chat_turns_total",
			Help: "Chat turns by rate-limit outcome",
		},
		[]string{"outcome"},
	)

	ModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_model_requests_total",
			Help: "Language model calls by result",
		},
		[]string{"result"}, // "success", "failure", "rejected"
	)

	ModelLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadgate_model_request_duration_seconds",
			Help:    "Duration of language model calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadgate_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	WebhookAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_webhook_attempts_total",
			Help: "Webhook delivery attempts by status",
		},
		[]string{"status"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_webhook_deliveries_total",
			Help: "Webhook delivery episodes by final result",
		},
		[]string{"result"}, // "delivered", "exhausted"
	)
)
