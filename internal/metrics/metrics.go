// Package metrics defines and registers all custom Prometheus metrics for the
// account service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on import via
// promauto, and exposed by the router on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// ── Lifecycle metrics ─────────────────────────────────────────────────────────

// RegistrationsTotal counts accounts created in the pending state.
var RegistrationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of accounts registered.",
	},
)

// LoginsTotal counts login attempts that reached credential checks.
// Label:
//   - result: "success", "invalid_credentials" or "not_activated"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// TokenConsumptionsTotal counts attempts to consume a single-use credential.
// Labels:
//   - kind: "activation" or "reset"
//   - result: "success", "invalid" or "expired"
var TokenConsumptionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_consumptions_total",
		Help:      "Total number of activation token and reset code consumption attempts.",
	},
	[]string{"kind", "result"},
)

// ResetRequestsTotal counts forgot-password requests.
// Label:
//   - result: "issued", "unknown_email" or "throttled"
var ResetRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reset_requests_total",
		Help:      "Total number of password reset requests, by result.",
	},
	[]string{"result"},
)

// ── Email metrics ─────────────────────────────────────────────────────────────

// EmailsTotal counts outbound notification outcomes.
// Labels:
//   - tag: the message tag (e.g. "activation", "password_reset")
//   - result: "sent", "failed" or "dropped" (queue full)
var EmailsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_total",
		Help:      "Total number of outbound emails, by tag and result.",
	},
	[]string{"tag", "result"},
)

// EmailQueueDepth tracks the number of messages waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EmailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "email_queue_depth",
		Help:      "Current number of emails pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// EmailSendDuration measures how long a single delivery attempt takes.
var EmailSendDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "email_send_duration_seconds",
		Help:      "Duration of a single email delivery attempt.",
		Buckets:   prometheus.DefBuckets,
	},
)
