package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by all endpoints.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Portal domain metrics.
var (
	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_login_attempts_total",
			Help: "Login attempts by session kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	rateLimitBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_rate_limit_blocks_total",
			Help: "Authentication attempts blocked by the rolling-window rate limiter.",
		},
		[]string{"endpoint"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_gate_decisions_total",
			Help: "Document mutability gate decisions.",
		},
		[]string{"operation", "decision"},
	)

	reaperDeletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_reaper_deletions_total",
			Help: "Rows removed by the background reaper.",
		},
		[]string{"table"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginAttempts, rateLimitBlocks, gateDecisions, reaperDeletions,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin records a login attempt outcome ("ok", "invalid", "rate_limited", "error").
func ObserveLogin(kind, outcome string) {
	loginAttempts.WithLabelValues(kind, outcome).Inc()
}

// ObserveRateLimitBlock records a blocked authentication attempt.
func ObserveRateLimitBlock(endpoint string) {
	rateLimitBlocks.WithLabelValues(endpoint).Inc()
}

// ObserveGateDecision records a mutability gate permit or deny.
func ObserveGateDecision(operation, decision string) {
	gateDecisions.WithLabelValues(operation, decision).Inc()
}

// ObserveReap records rows deleted by the reaper for one table.
func ObserveReap(table string, n int64) {
	if n > 0 {
		reaperDeletions.WithLabelValues(table).Add(float64(n))
	}
}

// CanonicalPath collapses per-submission path segments so metric label
// cardinality stays bounded regardless of how many slugs exist.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) >= 3 && parts[0] == "api" && parts[1] == "submissions":
		parts[2] = ":slug"
		if len(parts) >= 5 && parts[3] == "documents" {
			parts[4] = ":id"
		}
	case len(parts) >= 4 && parts[0] == "api" && parts[1] == "admin" && parts[2] == "submissions":
		parts[3] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
