// Package metrics provides Prometheus instrumentation for the alert worker
// and API. Metrics are registered on the default registry via promauto and
// served by Handler at GET /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// --------------------------------------------------------------------------
// Alert pipeline
// --------------------------------------------------------------------------

// AlertTicks counts alert scheduler runs by result (ok, error).
var AlertTicks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kickoff_alert_ticks_total",
	Help: "Alert scheduler ticks by result.",
}, []string{"result"})

// AlertTickDuration tracks how long one alert tick takes.
var AlertTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "kickoff_alert_tick_duration_seconds",
	Help:    "Alert scheduler tick latency in seconds.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
})

// MatchesFired counts matches that hit a fire point, by timing bucket.
var MatchesFired = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kickoff_alert_matches_fired_total",
	Help: "Matches that fired an alert, by timing bucket.",
}, []string{"bucket"})

// Deliveries counts channel sends by channel and result (sent, failed, skipped).
var Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kickoff_alert_deliveries_total",
	Help: "Alert deliveries by channel and result.",
}, []string{"channel", "result"})

// TemplatesSelected counts selections by template id.
var TemplatesSelected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kickoff_alert_templates_selected_total",
	Help: "Template selections by template id.",
}, []string{"template"})

// HistoryWrites counts history inserts by result.
var HistoryWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kickoff_alert_history_writes_total",
	Help: "Notification history inserts by result.",
}, []string{"result"})

// --------------------------------------------------------------------------
// Background jobs
// --------------------------------------------------------------------------

// JobRuns counts periodic job runs by job name and result.
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kickoff_job_runs_total",
	Help: "Background job runs by job and result.",
}, []string{"job", "result"})

// QueueEvents counts redis queue operations by queue and event
// (enqueued, delivered, dropped).
var QueueEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kickoff_queue_events_total",
	Help: "Queue events by queue and event.",
}, []string{"queue", "event"})

// --------------------------------------------------------------------------
// HTTP
// --------------------------------------------------------------------------

// HTTPRequests counts HTTP requests by method, route and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kickoff_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "path", "status"})

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "kickoff_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "path"})

// Result maps an error onto an ok/error label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := sanitizePath(r.URL.Path)
		HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// sanitizePath truncates long paths to bound label cardinality.
func sanitizePath(path string) string {
	if len(path) > 64 {
		return path[:64] + "..."
	}
	return path
}
