package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cdms/internal/platform/metrics"
)

// Metrics records request counts and latencies against the chi route
// pattern, so /rights/erasure/{id} stays one series no matter how many
// requests flow through it.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.ObserveHTTP(r.Method, route, recorder.status, time.Since(start))
		})
	}
}
