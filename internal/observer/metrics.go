package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for intake metrics
	intakeLabels = []string{"application"}
	// Labels for per-system delivery metrics
	deliveryLabels        = []string{"cdp_system"}
	deliveryOutcomeLabels = []string{"cdp_system", "outcome"}

	// Intake counters
	LeadsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_intake_service_leads_received_total",
			Help: "Total number of lead submissions received, labeled by source application.",
		},
		intakeLabels,
	)
	LeadsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_intake_service_leads_created_total",
			Help: "Total number of leads successfully persisted, labeled by source application.",
		},
		intakeLabels,
	)
	LeadsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_intake_service_leads_rejected_total",
			Help: "Total number of lead submissions rejected by validation or conflict checks.",
		},
		intakeLabels,
	)

	// Histogram for end-to-end intake duration (validation through commit)
	LeadIntakeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_intake_service_intake_duration_seconds",
			Help:    "Histogram of lead intake durations from validation to transaction commit.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		intakeLabels,
	)

	// Delivery counters and durations
	DeliveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_intake_service_delivery_attempts_total",
			Help: "Total number of CDP delivery attempts, labeled by system and outcome.",
		},
		deliveryOutcomeLabels,
	)
	DeliveryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_intake_service_delivery_duration_seconds",
			Help:    "Histogram of per-system CDP delivery call durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		deliveryLabels,
	)
	DeliveryRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_intake_service_delivery_retries_total",
			Help: "Total number of retry attempts made by the retry scheduler.",
		},
		deliveryLabels,
	)
	DeliveryExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_intake_service_delivery_exhausted_total",
			Help: "Total number of failed deliveries abandoned after the retry budget was spent.",
		},
		deliveryLabels,
	)
	DeliveryResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_intake_service_delivery_resolved_total",
			Help: "Total number of failed deliveries resolved by a successful retry.",
		},
		deliveryLabels,
	)

	// Global metrics instance
	Metrics *metricsStore
)

// Metrics related to the delivery queue worker
var (
	queueFetchRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_queue_fetch_requests_total",
		Help: "Total number of fetch requests made to the delivery stream.",
	})
	queueFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_queue_fetch_errors_total",
		Help: "Total number of errors encountered during delivery stream fetch requests.",
	})
	queueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "delivery_queue_length",
		Help: "Current number of jobs waiting in the internal delivery worker channel.",
	})
	queueWorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "delivery_queue_workers_active",
		Help: "Current number of active worker goroutines in the delivery pool.",
	})
	queueTasksSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_queue_tasks_submitted_total",
		Help: "Total number of jobs submitted to the delivery worker pool.",
	})
	queueProcessingDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "delivery_queue_processing_duration_seconds",
		Help:    "Histogram of processing durations for delivery queue jobs.",
		Buckets: prometheus.DefBuckets,
	})
	queueTaskRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_queue_task_retries_total",
		Help: "Total number of retry attempts (NAKs with delay) for delivery queue jobs.",
	})
	queueAcksSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_queue_acks_success_total",
		Help: "Total number of successful acknowledgements for delivery queue jobs.",
	})
	queueAcksFailureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_queue_acks_failure_total",
		Help: "Total number of terminal acknowledgements (Term) for delivery queue jobs.",
	})
	queueTasksDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_queue_tasks_dropped_total",
		Help: "Total number of delivery queue jobs dropped after exceeding max deliveries.",
	})
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_intake_service_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// --- Scoring Metrics ---
var (
	scoringStatusLabels = []string{"status"}

	scoringRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_intake_service_scoring_requests_total",
			Help: "Total number of scoring requests, labeled by final status.",
		},
		scoringStatusLabels,
	)
	scoringDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lead_intake_service_scoring_duration_seconds",
		Help:    "Histogram of scoring request durations.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})
)

// --- Retry Scheduler Metrics ---
var (
	retryRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lead_intake_service_retry_runs_total",
		Help: "Total number of retry scheduler sweeps executed.",
	})
	retryBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lead_intake_service_retry_batch_size",
		Help:    "Histogram of due failed-delivery records picked up per sweep.",
		Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
	})
)

// metricsStore holds references to all Prometheus metrics.
type metricsStore struct{}

// InitMetrics initializes the Prometheus metrics if enabled. Metrics are
// auto-registered via promauto; this only flips the collection flag.
func InitMetrics(enabled bool) {
	if !enabled {
		metricsEnabled = false
		return
	}
	metricsEnabled = true
	Metrics = &metricsStore{}
}

// IncLeadsReceived increments the submissions received counter.
func IncLeadsReceived(application string) {
	if !metricsEnabled {
		return
	}
	LeadsReceivedTotal.WithLabelValues(sanitizeApplication(application)).Inc()
}

// IncLeadsCreated increments the leads persisted counter.
func IncLeadsCreated(application string) {
	if !metricsEnabled {
		return
	}
	LeadsCreatedTotal.WithLabelValues(sanitizeApplication(application)).Inc()
}

// IncLeadsRejected increments the submissions rejected counter.
func IncLeadsRejected(application string) {
	if !metricsEnabled {
		return
	}
	LeadsRejectedTotal.WithLabelValues(sanitizeApplication(application)).Inc()
}

// ObserveLeadIntakeDuration records the intake duration for a submission.
func ObserveLeadIntakeDuration(application string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	LeadIntakeDurationSeconds.WithLabelValues(sanitizeApplication(application)).Observe(duration.Seconds())
}

// sanitizeApplication ensures the application label is valid or returns a default value.
func sanitizeApplication(application string) string {
	if application == "" {
		return "unknown"
	}
	return application
}

// --- Delivery Metric Helpers ---

// IncDeliveryAttempt increments the delivery attempt counter for a system.
func IncDeliveryAttempt(system, outcome string) {
	if !metricsEnabled {
		return
	}
	DeliveryAttemptsTotal.WithLabelValues(system, outcome).Inc()
}

// ObserveDeliveryDuration records the duration of one CDP delivery call.
func ObserveDeliveryDuration(system string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	DeliveryDurationSeconds.WithLabelValues(system).Observe(duration.Seconds())
}

// IncDeliveryRetry increments the retry attempt counter for a system.
func IncDeliveryRetry(system string) {
	if !metricsEnabled {
		return
	}
	DeliveryRetriesTotal.WithLabelValues(system).Inc()
}

// IncDeliveryExhausted increments the abandoned-delivery counter for a system.
func IncDeliveryExhausted(system string) {
	if !metricsEnabled {
		return
	}
	DeliveryExhaustedTotal.WithLabelValues(system).Inc()
}

// IncDeliveryResolved increments the resolved-delivery counter for a system.
func IncDeliveryResolved(system string) {
	if !metricsEnabled {
		return
	}
	DeliveryResolvedTotal.WithLabelValues(system).Inc()
}

// --- Delivery Queue Metric Helpers ---

// IncQueueFetchRequest increments the delivery stream fetch request counter.
func IncQueueFetchRequest() {
	if Metrics != nil {
		queueFetchRequestsTotal.Inc()
	}
}

// IncQueueFetchError increments the delivery stream fetch error counter.
func IncQueueFetchError() {
	if Metrics != nil {
		queueFetchErrorsTotal.Inc()
	}
}

// SetQueueLength sets the current delivery worker internal queue length.
func SetQueueLength(length int) {
	if Metrics != nil {
		queueLength.Set(float64(length))
	}
}

// SetQueueWorkersActive sets the current number of active delivery workers.
func SetQueueWorkersActive(count int) {
	if Metrics != nil {
		queueWorkersActive.Set(float64(count))
	}
}

// IncQueueTasksSubmitted increments the counter for jobs submitted to the pool.
func IncQueueTasksSubmitted() {
	if Metrics != nil {
		queueTasksSubmittedTotal.Inc()
	}
}

// ObserveQueueProcessingDuration records the processing time for a queue job.
func ObserveQueueProcessingDuration(duration time.Duration) {
	if Metrics != nil {
		queueProcessingDurationSeconds.Observe(duration.Seconds())
	}
}

// IncQueueTaskRetry increments the counter for queue job retry attempts.
func IncQueueTaskRetry() {
	if Metrics != nil {
		queueTaskRetriesTotal.Inc()
	}
}

// IncQueueAckSuccess increments the counter for successful queue job ACKs.
func IncQueueAckSuccess() {
	if Metrics != nil {
		queueAcksSuccessTotal.Inc()
	}
}

// IncQueueAckFailure increments the counter for terminal queue job ACKs.
func IncQueueAckFailure() {
	if Metrics != nil {
		queueAcksFailureTotal.Inc()
	}
}

// IncQueueTasksDropped increments the counter for jobs dropped after max deliveries.
func IncQueueTasksDropped() {
	if Metrics != nil {
		queueTasksDroppedTotal.Inc()
	}
}

// --- Database Metric Helpers ---

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, status).Observe(duration.Seconds())
}

// --- Scoring Metric Helpers ---

// IncScoringRequest increments the scoring request counter by final status.
func IncScoringRequest(status string) {
	if !metricsEnabled {
		return
	}
	scoringRequestsTotal.WithLabelValues(status).Inc()
}

// ObserveScoringDuration records the duration of one scoring request.
func ObserveScoringDuration(duration time.Duration) {
	if !metricsEnabled {
		return
	}
	scoringDurationSeconds.Observe(duration.Seconds())
}

// --- Retry Scheduler Metric Helpers ---

// IncRetryRun increments the retry sweep counter.
func IncRetryRun() {
	if !metricsEnabled {
		return
	}
	retryRunsTotal.Inc()
}

// ObserveRetryBatchSize records how many due records a sweep picked up.
func ObserveRetryBatchSize(size int) {
	if !metricsEnabled {
		return
	}
	retryBatchSize.Observe(float64(size))
}
