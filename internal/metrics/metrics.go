package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcom_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satcom_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	timelineBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcom_timeline_builds_total",
			Help: "Total number of mission timeline builds.",
		},
		[]string{"result"},
	)

	timelineBuildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satcom_timeline_build_seconds",
			Help:    "Mission timeline build duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	timelineSampleCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satcom_timeline_sample_count",
			Help: "Route samples evaluated by the most recent timeline build.",
		},
	)

	telemetryTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcom_telemetry_ticks_total",
			Help: "Total number of telemetry ticks processed.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(timelineBuildsTotal)
	prometheus.MustRegister(timelineBuildSeconds)
	prometheus.MustRegister(timelineSampleCount)
	prometheus.MustRegister(telemetryTicksTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBuild records one timeline build outcome.
func ObserveBuild(duration time.Duration, samples int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	timelineBuildsTotal.WithLabelValues(result).Inc()
	if err == nil {
		timelineBuildSeconds.Observe(duration.Seconds())
		timelineSampleCount.Set(float64(samples))
	}
}

// ObserveTelemetryTick records one telemetry tick outcome.
func ObserveTelemetryTick(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	telemetryTicksTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}

// normalizeRoute collapses parameterized and unknown paths so metric
// cardinality stays bounded.
func normalizeRoute(path string) string {
	switch path {
	case "/", "/health", "/metrics", "/ws",
		"/api/v1/status", "/api/v1/config",
		"/api/v1/missions", "/api/v1/routes", "/api/v1/pois",
		"/api/v1/flight/status", "/api/v1/telemetry/status":
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "v1" {
		switch parts[2] {
		case "missions":
			if len(parts) == 4 {
				return "/api/v1/missions/{id}"
			}
			if len(parts) == 5 {
				return "/api/v1/missions/{id}/" + parts[4]
			}
		case "routes":
			if len(parts) == 4 {
				return "/api/v1/routes/{id}"
			}
		case "flight":
			return "/api/v1/flight/" + parts[3]
		}
	}
	return "other"
}
