package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sorted_score_recalculations_total",
			Help: "Total number of Peace of Mind score recalculations",
		},
		[]string{"tenant_id", "trigger"},
	)

	ComplianceScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sorted_compliance_score",
			Help: "Current Peace of Mind score per tenant",
		},
		[]string{"tenant_id"},
	)

	OperationalEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sorted_operational_events_total",
			Help: "Operational events derived for dashboards, by category",
		},
		[]string{"tenant_id", "category"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sorted_assistant_commands_total",
			Help: "Assistant commands parsed, by matched intent",
		},
		[]string{"intent"},
	)

	CoverSuggestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sorted_cover_suggestions_total",
			Help: "Cover candidate suggestions produced, by strategy",
		},
		[]string{"strategy"},
	)

	BusinessEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sorted_business_events_total",
			Help: "Business events appended to the log, by event type",
		},
		[]string{"event_type"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sorted_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	DigestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sorted_digest_runs_total",
			Help: "Scheduled digest runs, by outcome",
		},
		[]string{"outcome"},
	)
)
