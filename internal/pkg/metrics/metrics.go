// Package metrics defines and registers all custom Prometheus metrics for the
// ingest console. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation and exposed by the console under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ingest"

// ── Reconciliation metrics ───────────────────────────────────────────────────

// PollCyclesTotal counts finished status fetches.
// Labels:
//   - screen: the consumer that started the engine (e.g. "documents", "dashboard")
//   - result: "applied", "stale" (superseded or canceled, discarded) or "error"
var PollCyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_cycles_total",
		Help:      "Total number of status fetches, by outcome.",
	},
	[]string{"screen", "result"},
)

// PollDuration measures the latency of a single status fetch.
var PollDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Duration of a status fetch from issue to settle.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"screen"},
)

// ActiveEngines tracks the number of running reconciliation engines.
var ActiveEngines = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reconcile_engines_active",
		Help:      "Number of running reconciliation engines.",
	},
	[]string{"screen"},
)

// ── Session metrics ──────────────────────────────────────────────────────────

// SessionEventsTotal counts session transitions.
// Label:
//   - event: "login", "login_failed", "identity_fetched", "identity_failed", "sign_out", "restored", "expired"
var SessionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_total",
		Help:      "Total number of session state transitions.",
	},
	[]string{"event"},
)

// GuardDecisionsTotal counts guard evaluations.
// Labels:
//   - outcome: "allow" or "deny"
//   - reason: deny reason, empty for allow
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of authorization guard decisions.",
	},
	[]string{"outcome", "reason"},
)

// ── Batch ingestion metrics ──────────────────────────────────────────────────

// IngestTriggersTotal counts ingestion triggers sent by the batch dispatcher.
// Label:
//   - result: "ok" or "error"
var IngestTriggersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_triggers_total",
		Help:      "Total number of ingestion triggers sent in batches.",
	},
	[]string{"result"},
)
