package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	RetryAttempts        *prometheus.CounterVec
	SplitsCreated        *prometheus.CounterVec
	TransferFailures     prometheus.Counter
	WebhookErrors        prometheus.Counter
	WebhookResolved      prometheus.Counter
	RecoveryActions      *prometheus.CounterVec
	PendingRecords       *prometheus.GaugeVec
	GatewayProbeDuration prometheus.Histogram
	GatewayErrors        *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_retry_attempts_total",
				Help:      "Pending-record retry attempts by variant and outcome.",
			}, []string{"variant", "outcome"}),
			SplitsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "splits_created_total",
				Help:      "Split ledger rows created by recipient and service type.",
			}, []string{"recipient", "service_type"}),
			TransferFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfer_failures_total",
				Help:      "External transfer creations rejected or failed by the gateway.",
			}),
			WebhookErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_errors_recorded_total",
				Help:      "Webhook processing failures recorded in the ledger.",
			}),
			WebhookResolved: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_errors_resolved_total",
				Help:      "Webhook errors resolved by retry or operator override.",
			}),
			RecoveryActions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_actions_total",
				Help:      "Recovery action executions by type and outcome.",
			}, []string{"type", "outcome"}),
			PendingRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_records",
				Help:      "Pending fallback records by variant.",
			}, []string{"variant"}),
			GatewayProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_probe_duration_seconds",
				Help:      "Latency distribution of gateway connectivity probes.",
				Buckets:   prometheus.DefBuckets,
			}),
			GatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_errors_total",
				Help:      "Gateway errors by the gateway's own classification.",
			}, []string{"type"}),
		}

		prometheus.MustRegister(
			metricsInstance.RetryAttempts,
			metricsInstance.SplitsCreated,
			metricsInstance.TransferFailures,
			metricsInstance.WebhookErrors,
			metricsInstance.WebhookResolved,
			metricsInstance.RecoveryActions,
			metricsInstance.PendingRecords,
			metricsInstance.GatewayProbeDuration,
			metricsInstance.GatewayErrors,
		)
	})
	return metricsInstance
}
