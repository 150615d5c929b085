// ABOUTME: Prometheus counters for event processing, dedup, sends, and sweeps
// ABOUTME: Exposed via promhttp on the metrics endpoint when enabled in config

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsProcessed counts webhook events whose handler ran to completion.
	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongw_events_processed_total",
		Help: "Inbound events processed by the business handler.",
	})

	// EventsDuplicate counts deliveries skipped because the event id was
	// already claimed.
	EventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongw_events_duplicate_total",
		Help: "Inbound deliveries skipped as duplicates.",
	})

	// EventsFailed counts handler failures (the delivery will be retried
	// upstream).
	EventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongw_events_failed_total",
		Help: "Inbound events whose handler failed.",
	})

	// DedupFailOpen counts claim attempts that proceeded without dedup cover
	// because the store was unavailable.
	DedupFailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongw_dedup_fail_open_total",
		Help: "Events processed without a dedup claim due to store errors.",
	})

	// SendsRejected counts outbound sends rejected because the session window
	// required a template.
	SendsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongw_sends_rejected_total",
		Help: "Free-form sends rejected outside the session window.",
	})

	// RecordsSwept counts rows removed by the cleanup sweeper, per table.
	RecordsSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiongw_records_swept_total",
		Help: "Expired records removed by the cleanup sweeper.",
	}, []string{"table"})
)

// Handler returns the HTTP handler for the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
