package router

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/finsightx/alert-engine/internal/metrics"
)

// RequestRecorder is the part of pkg/metrics.Collector the middleware uses.
type RequestRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordError()
	IncrementCustom(name string)
}

// skipMetrics reports whether a path is excluded from request metrics:
// scrapes, health checks and long-lived sockets.
func skipMetrics(path string) bool {
	switch path {
	case "/metrics", "/health", "/ws/alerts", "/services/metrics", "/api/v1/services/metrics":
		return true
	}
	return false
}

// metricsMiddleware tracks HTTP request metrics in Prometheus and, when a
// collector is set, in the Redis service snapshot.
func metricsMiddleware(collector RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipMetrics(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if collector != nil {
				collector.RecordReceived()
			}
			start := time.Now()

			// WrapResponseWriter keeps Flusher and Hijacker available.
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			latency := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := routePattern(r)
			labels := []string{r.Method, route, strconv.Itoa(status)}
			metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(latency.Seconds())

			if collector == nil {
				return
			}
			if status >= 400 {
				collector.RecordError()
			} else {
				collector.RecordProcessed(latency)
			}
			collector.IncrementCustom("http_" + r.Method)
		})
	}
}

// routePattern returns the matched chi pattern so label cardinality stays
// bounded by the route table.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return strings.TrimSuffix(p, "/")
		}
	}
	return "unmatched"
}
