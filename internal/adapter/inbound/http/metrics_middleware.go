package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/param-gate/paramgate/pkg/validate"
)

// MetricsMiddleware records per-request Prometheus metrics: a duration
// histogram by method and a request counter by method and outcome. The
// outcome label separates validation rejections from other failures, so
// the rejection rate is readable straight off requests_total.
//
// rejectStatus is the status code the dispatch wrapper renders on
// validation failure; pass 0 to use the default.
func MetricsMiddleware(metrics *Metrics, rejectStatus int) func(http.Handler) http.Handler {
	if rejectStatus <= 0 {
		rejectStatus = validate.DefaultErrorStatus
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if operationalPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			metrics.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			metrics.RequestsTotal.WithLabelValues(r.Method, outcomeLabel(wrapped.status, rejectStatus)).Inc()
		})
	}
}

// operationalPath reports whether the path is one of the server's own
// endpoints, which are excluded from request metrics.
func operationalPath(path string) bool {
	switch path {
	case "/metrics", "/health", "/favicon.ico":
		return true
	}
	return strings.HasPrefix(path, "/docs/")
}

// statusRecorder captures the status code written by the wrapped
// handler. Shared with the tracing middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush delegates to the underlying ResponseWriter if it supports
// http.Flusher.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// outcomeLabel maps a final status code to a bounded label value. The
// configured validation error status gets its own label so rejections
// are not lumped in with server errors.
func outcomeLabel(code, rejectStatus int) string {
	switch {
	case code == rejectStatus:
		return "rejected"
	case code >= 200 && code < 400:
		return "ok"
	default:
		return "error"
	}
}
