// Package metrics defines and registers the custom Prometheus metrics of the
// gateway. It is the single source of truth for metric names, labels, and
// help strings. HTTP request metrics come from echoprometheus and are not
// declared here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campus_gateway"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthFailuresTotal counts requests refused by the authentication filter.
// Label:
//   - reason: "missing_header", "malformed_header", or a token failure reason
//     ("malformed", "signature", "expired", "claims")
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of requests rejected by token authentication.",
	},
	[]string{"reason"},
)

// AuthzDeniedTotal counts authenticated requests refused by a role guard.
var AuthzDeniedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authz_denied_total",
		Help:      "Total number of authenticated requests denied by role.",
	},
	[]string{"role"},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, labelled by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts accounts created through self-registration.
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of self-registered accounts, by role.",
	},
	[]string{"role"},
)

// ── Publish metrics ───────────────────────────────────────────────────────────

// PublishTotal counts publish outcomes.
// Labels:
//   - topic: destination stream
//   - result: "ok", "rejected", "unavailable", or "saturated"
var PublishTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_total",
		Help:      "Total number of publish calls, labelled by topic and result.",
	},
	[]string{"topic", "result"},
)

// PublishRetriesTotal counts failed attempts that were followed by a retry.
var PublishRetriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_retries_total",
		Help:      "Total number of publish attempts retried after a transient failure.",
	},
	[]string{"topic"},
)

// PublishInFlight tracks publishes currently holding a channel slot.
var PublishInFlight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "publish_in_flight",
		Help:      "Current number of publishes holding an in-flight slot.",
	},
)

// PublishDuration measures a publish call from slot acquisition to the
// final attempt.
var PublishDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "publish_duration_seconds",
		Help:      "Duration of publish calls including retries.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"topic"},
)

// ── Submission metrics ────────────────────────────────────────────────────────

// SubmissionDedupTotal counts deduplication decisions.
// Label:
//   - result: "hit" (duplicate, skipped), "miss" (new), or "error"
var SubmissionDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submission_dedup_total",
		Help:      "Total number of submission deduplication checks, labelled by result.",
	},
	[]string{"result"},
)

// ── Consumer metrics ──────────────────────────────────────────────────────────

// ConsumerMessagesTotal counts stream entries handled by the registration
// consumer.
// Label:
//   - result: "ok", "dropped" (undecodable or invalid, acked), or "error" (left pending)
var ConsumerMessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consumer_messages_total",
		Help:      "Total number of consumed stream entries, labelled by result.",
	},
	[]string{"result"},
)

// ConsumerQueueDepth tracks entries waiting in each dispatcher worker channel.
var ConsumerQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "consumer_queue_depth",
		Help:      "Current number of entries pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
