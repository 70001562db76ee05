package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outboundProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "outbound_processed_total",
			Help:      "Total outbound dispatch attempts by terminal status.",
		},
		[]string{"provider", "status"}, // status: "sent", "error"
	)

	vendorRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "messaging",
			Name:      "vendor_request_duration_seconds",
			Help:      "Duration of HTTP requests to telephony vendors.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	inboundReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "inbound_received_total",
			Help:      "Total inbound messages persisted from vendor webhooks.",
		},
		[]string{"vendor"},
	)

	webhookRejectedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "webhooks_rejected_total",
			Help:      "Total webhook requests rejected before persisting a row.",
		},
		[]string{"vendor", "reason"}, // reason: "signature", "unknown_destination", "payload"
	)
)

// CountWebhookRejected records a webhook rejected before any row was written.
func CountWebhookRejected(vendor, reason string) {
	webhookRejectedCounter.WithLabelValues(vendor, reason).Inc()
}
