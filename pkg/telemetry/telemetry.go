// Package telemetry provides low-overhead request timing. Every request
// feeds a Prometheus histogram; only requests slower than the configured
// threshold are logged individually.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pilotdeck/pkg/logger"
)

var slowThreshold = 200 * time.Millisecond

var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pilotdeck_http_request_duration_seconds",
		Help:    "HTTP request latency by method and path.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "path"},
)

// SetSlowThreshold overrides the slow-request log threshold. Zero or
// negative values are ignored.
func SetSlowThreshold(d time.Duration) {
	if d > 0 {
		slowThreshold = d
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware records request durations and logs slow requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())
		if elapsed >= slowThreshold {
			logger.Warn("slow_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
			)
		}
	})
}
