// Package metrics defines and registers all custom Prometheus metrics for the
// session client. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics register with the default Prometheus registry at package init via
// promauto; expose them with promhttp.Handler().
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session"

// ── Rehydration metrics ───────────────────────────────────────────────────────

// RehydrationsTotal counts finished startup rehydrations.
// Labels:
//   - source: the source that authenticated ("primary", "secondary") or "none"
//   - outcome: "authenticated", "unauthenticated" or "panic"
var RehydrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rehydrations_total",
		Help:      "Total number of startup rehydrations, by deciding source and outcome.",
	},
	[]string{"source", "outcome"},
)

// SourceFailuresTotal counts failed session source attempts.
// Labels:
//   - source: "primary" or "secondary"
//   - kind: failure classification (e.g. "expired", "transport", "authorization")
var SourceFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_failures_total",
		Help:      "Total number of session source attempts that did not yield an identity.",
	},
	[]string{"source", "kind"},
)

// RehydrationDuration measures how long startup rehydration takes.
var RehydrationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rehydration_duration_seconds",
		Help:      "Duration of startup rehydration until a terminal state is committed.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 8, 10, 15},
	},
)

// ── Profile metrics ───────────────────────────────────────────────────────────

// ProfileLoadsTotal counts profile load requests.
// Label:
//   - result: "hit", "stale", "fetch", "created" or "fallback"
var ProfileLoadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_loads_total",
		Help:      "Total number of profile load requests, labelled by how they were served.",
	},
	[]string{"result"},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsTotal counts provider session-change events applied.
// Label:
//   - kind: "SIGNED_IN", "SIGNED_OUT", "TOKEN_REFRESHED", "USER_UPDATED"
var EventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Total number of session-change events applied.",
	},
	[]string{"kind"},
)

// EventsQueueDepth tracks events waiting to be applied.
var EventsQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of session-change events pending in the queue.",
	},
)

// SafetyTimeoutsTotal counts supervisory timers that fired.
// Label:
//   - timer: "global" or "profile"
var SafetyTimeoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "safety_timeouts_total",
		Help:      "Total number of supervisory timeouts that fired before normal completion.",
	},
	[]string{"timer"},
)
