package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Requests rejected by the rate limiter
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected with 429",
		},
		[]string{"policy"},
	)

	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "sessions_created_total",
			Help:      "Total number of relay sessions opened",
		},
	)

	DraftsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "drafts_created_total",
			Help:      "Total number of drafts submitted",
		},
		[]string{"conditioned"},
	)

	// Publish outcomes by reason ("published" on success)
	PublishAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "publish_attempts_total",
			Help:      "Total number of publish attempts by outcome",
		},
		[]string{"outcome"},
	)

	SessionsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "sessions_completed_total",
			Help:      "Total number of relay sessions that reached their bound",
		},
	)

	// Generation jobs
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "generation_jobs_total",
			Help:      "Total number of generation job executions by result",
		},
		[]string{"result"},
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "generation_job_duration_seconds",
			Help:      "Generation job execution time in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "generation_queue_depth",
			Help:      "Number of queued generation jobs",
		},
	)

	SweptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "relay_api",
			Name:      "swept_total",
			Help:      "Total number of records cleaned up by the sweeper",
		},
		[]string{"kind"},
	)
)

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRateLimited records a throttled request
func RecordRateLimited(policy string) {
	RateLimitedTotal.WithLabelValues(policy).Inc()
}

// RecordDraftCreated records a submitted draft
func RecordDraftCreated(conditioned bool) {
	DraftsCreatedTotal.WithLabelValues(strconv.FormatBool(conditioned)).Inc()
}

// RecordPublish records a publish outcome
func RecordPublish(outcome string, completed bool) {
	PublishAttemptsTotal.WithLabelValues(outcome).Inc()
	if completed {
		SessionsCompletedTotal.Inc()
	}
}

// RecordJob records one job execution
func RecordJob(result string, duration time.Duration) {
	JobsTotal.WithLabelValues(result).Inc()
	JobDuration.Observe(duration.Seconds())
}

// SetQueueDepth sets the current queue depth
func SetQueueDepth(depth int64) {
	QueueDepth.Set(float64(depth))
}

// RecordSwept records sweeper deletions
func RecordSwept(kind string, count int64) {
	SweptTotal.WithLabelValues(kind).Add(float64(count))
}
