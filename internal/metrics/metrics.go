package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanctuary_http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sanctuary_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
		[]string{"method", "path"},
	)

	calendarEventsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sanctuary_calendar_events_generated_total",
			Help: "Regular calendar events created by the monthly generator",
		},
	)

	scheduleSyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanctuary_schedule_sync_runs_total",
			Help: "Schedule reconciliation runs by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	scheduleSyncChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanctuary_schedule_sync_entries_total",
			Help: "Remote schedule entries by platform and action taken",
		},
		[]string{"platform", "action"},
	)

	pushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanctuary_push_deliveries_total",
			Help: "Push delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	pushDeliveriesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sanctuary_push_deliveries_in_flight",
			Help: "Push deliveries dispatched in-process and not yet settled",
		},
	)

	pushBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanctuary_push_batches_total",
			Help: "Notification batches by outcome",
		},
		[]string{"outcome"},
	)

	pushRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sanctuary_push_retries_total",
			Help: "Deliveries re-invoked by the retry worker",
		},
	)

	sqsMessagesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sanctuary_sqs_messages_in_flight",
			Help: "Current messages being processed from SQS",
		},
	)

	idempotencyHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sanctuary_idempotency_hits_total",
			Help: "Requests served from idempotency cache",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanctuary_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"route"},
	)

	youtubeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanctuary_youtube_lookups_total",
			Help: "Latest video lookups by channel and source",
		},
		[]string{"channel", "source"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sanctuary_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEventsGenerated counts events created by the monthly generator
func RecordEventsGenerated(count int) {
	calendarEventsGenerated.Add(float64(count))
}

// RecordScheduleSync records a reconciliation run and the changes it made
func RecordScheduleSync(platform string, matched, created, deleted, failed int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	scheduleSyncRuns.WithLabelValues(platform, outcome).Inc()
	scheduleSyncChanges.WithLabelValues(platform, "matched").Add(float64(matched))
	scheduleSyncChanges.WithLabelValues(platform, "created").Add(float64(created))
	scheduleSyncChanges.WithLabelValues(platform, "deleted").Add(float64(deleted))
	scheduleSyncChanges.WithLabelValues(platform, "failed").Add(float64(failed))
}

// RecordPushDelivery records the outcome of one delivery attempt
func RecordPushDelivery(outcome string) {
	pushDeliveries.WithLabelValues(outcome).Inc()
}

// AddPushInFlight adjusts the in-process delivery gauge
func AddPushInFlight(delta int) {
	pushDeliveriesInFlight.Add(float64(delta))
}

// RecordPushBatch records whether a batch was dispatched or aborted
func RecordPushBatch(outcome string) {
	pushBatches.WithLabelValues(outcome).Inc()
}

// RecordPushRetry records a delivery re-invoked by the retry worker
func RecordPushRetry() {
	pushRetries.Inc()
}

// SetSQSMessagesInFlight sets the current in-flight message count
func SetSQSMessagesInFlight(count int) {
	sqsMessagesInFlight.Set(float64(count))
}

// RecordIdempotencyHit records a cache hit for idempotency
func RecordIdempotencyHit() {
	idempotencyHits.Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(route string) {
	rateLimitRejections.WithLabelValues(route).Inc()
}

// RecordYouTubeLookup records where a latest video answer came from
func RecordYouTubeLookup(channel, source string) {
	youtubeLookups.WithLabelValues(channel, source).Inc()
}

// SetCircuitBreakerState publishes a breaker's state
func SetCircuitBreakerState(name string, state int) {
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics. Requests
// are labeled by chi route pattern to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, routePattern(r), wrapped.status, time.Since(start))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
