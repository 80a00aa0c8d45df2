// Package metrics holds the process-wide Prometheus collectors. They are
// registered on the default registry and served by promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survivor_reconcile_passes_total",
		Help: "Reconciliation passes per edition, by result",
	}, []string{"result"})

	ReconcileErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survivor_reconcile_errors_total",
		Help: "Errors logged and skipped during reconciliation",
	}, []string{"stage"})

	Eliminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survivor_eliminations_total",
		Help: "Participants moved to ELIMINATED",
	}, []string{"reason"})

	LifelinesSpent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "survivor_lifelines_spent_total",
		Help: "Wrong picks absorbed by a lifeline",
	})

	RewardsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survivor_rewards_issued_total",
		Help: "Reward transactions written",
	}, []string{"cause", "currency"})

	PicksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survivor_picks_submitted_total",
		Help: "Pick submissions by result",
	}, []string{"result"})

	Closures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survivor_closures_total",
		Help: "Edition closures by outcome",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survivor_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "survivor_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "route"})
)

// Closure outcomes.
const (
	OutcomePayout          = "payout"
	OutcomeRolloverForward = "rollover_forward"
	OutcomeRolloverPending = "rollover_pending"
)
