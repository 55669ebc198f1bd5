package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agenda_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// Decisions counts Decision Engine runs by notification kind and outcome.
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_decisions_total",
			Help: "Decisions taken on notifications",
		},
		[]string{"kind", "action", "outcome"},
	)

	SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_aggregation_source_failures_total",
			Help: "Aggregation sources that failed and were replaced by an empty set",
		},
		[]string{"aggregator", "source"},
	)

	CascadeNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_cascade_notifications_total",
			Help: "Notifications sent or removed while cancelling or deleting events",
		},
		[]string{"op"},
	)

	Cleared = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_notifications_cleared_total",
			Help: "Notifications deleted or skipped by the retention policy",
		},
		[]string{"result"},
	)
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(RequestCount, RequestDuration, Decisions, SourceFailures, CascadeNotifications, Cleared)
	})
}
