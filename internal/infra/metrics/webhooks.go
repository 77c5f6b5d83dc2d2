package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookDuplicatesTotal,
		webhookProcessingMs,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound gateway events by type and processing outcome.",
		},
		[]string{"type", "outcome"},
	)

	webhookDuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_duplicates_total",
			Help: "Redeliveries short-circuited by the idempotency ledger.",
		},
	)

	webhookProcessingMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_ms",
			Help:    "Reconciliation unit-of-work latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"type"},
	)
)

// Outcome labels for webhook_events_total.
const (
	OutcomeProcessed = "processed"
	OutcomeNoop      = "noop"
	OutcomeRetryable = "retryable"
	OutcomeTerminal  = "terminal"
)

func IncWebhookEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(outcome)).Inc()
}

func IncWebhookDuplicate() { webhookDuplicatesTotal.Inc() }

func ObserveWebhookProcessing(eventType string, ms float64) {
	webhookProcessingMs.WithLabelValues(norm(eventType)).Observe(ms)
}
