package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Delivery metrics
	DeliveriesTotal *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec
	MessagesTotal   *prometheus.CounterVec
	DispatchErrors  *prometheus.CounterVec
	QueueInFlight   prometheus.Gauge

	// Scheduled runner metrics
	ScheduledClaimed           prometheus.Counter
	ScheduledFailed            prometheus.Counter
	ScheduledProcessingLatency prometheus.Histogram
	StrandedResumed            prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Redis metrics
	EventPublishes *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "deliveries_total",
			Help:      "Total number of per-recipient delivery attempts",
		}, []string{"channel", "provider", "outcome"}),
		DeliveryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent in a channel adapter per recipient",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"channel"}),
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_total",
			Help:      "Total number of messages by resulting status",
		}, []string{"status"}),
		DispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_errors_total",
			Help:      "Dispatch requests rejected or aborted, by error code",
		}, []string{"code"}),
		QueueInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_in_flight",
			Help:      "Deliveries currently executing",
		}),

		ScheduledClaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduled_claimed_total",
			Help:      "Total number of scheduled tickets claimed by the runner",
		}),
		ScheduledFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduled_failed_total",
			Help:      "Total number of scheduled tickets released after a failed delivery run",
		}),
		ScheduledProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduled_processing_duration_seconds",
			Help:      "Time spent processing one poll of due tickets",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		}),
		StrandedResumed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stranded_resumed_total",
			Help:      "Total number of stranded messages resumed by the supervisor",
		}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		EventPublishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "event_publishes_total",
			Help:      "Total number of communication events published to Redis",
		}, []string{"event", "status"}),
	}
}
