package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_listening_db_query_duration_seconds",
			Help:    "Database statement execution time in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "status"},
	)

	queryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_listening_db_errors_total",
			Help: "Total number of failed database statements",
		},
		[]string{"operation"},
	)

	skippedQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_listening_db_skipped_queries_total",
			Help: "Queries short-circuited because the scope had no content tables",
		},
		[]string{"operation"},
	)

	upstreamDeleteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "social_listening_upstream_delete_failures_total",
			Help: "Best-effort raw record deletes that failed",
		},
	)
)

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		queryErrors.WithLabelValues(operation).Inc()
	}
	queryDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
