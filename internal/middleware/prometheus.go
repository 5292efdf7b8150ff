package middleware

import (
	"net/http"
	"time"

	"github.com/crucial707/hci-undo/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// Prometheus records request duration and count for each request, labelled by the
// matched chi route pattern when there is one so per-item paths share a series.
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		statusW := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(statusW, r)
		if r.URL.Path == "/metrics" {
			return
		}
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		if path == "" {
			path = "/"
		}
		metrics.RecordRequest(r.Method, path, statusW.status, time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
