package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
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

// Auth subsystem metrics.
var (
	AuthRegistrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "User registrations by outcome.",
		},
		[]string{"outcome"},
	)

	AuthLogins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	TokenValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Token verifications by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_events_published_total",
			Help: "Identity lifecycle events published by topic.",
		},
		[]string{"topic"},
	)

	EventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_events_consumed_total",
			Help: "Identity lifecycle events consumed by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)

	EventsParked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_events_parked_total",
			Help: "Identity events parked after exhausting redelivery attempts.",
		},
		[]string{"topic"},
	)
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		AuthRegistrations, AuthLogins, TokenValidations,
		EventsPublished, EventsConsumed, EventsParked,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
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

// statusWriter is a local copy so we can capture the response code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
